package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/gsmsim/datarecording"
	"github.com/sarchlab/gsmsim/tracing"
)

func newTraceCmd() *cobra.Command {
	var (
		q        tracing.MessageQuery
		dir      string
		from, to float64
	)

	cmd := &cobra.Command{
		Use:   "trace DATABASE",
		Short: "Print the messages recorded by a run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch tracing.Direction(dir) {
			case "", tracing.DirectionSend, tracing.DirectionRecv:
				q.Direction = tracing.Direction(dir)
			default:
				return fmt.Errorf("unknown direction %q", dir)
			}

			flags := cmd.Flags()
			if flags.Changed("from") || flags.Changed("to") {
				q.EnableTimeRange = true
				q.StartTime = from
				q.EndTime = to
			}

			r, err := datarecording.NewReader(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			rows, total, err := tracing.NewMessageReader(r).
				Messages(cmd.Context(), q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range rows {
				fmt.Fprintf(out, "%12.6f %-8s %-4s %-2s %s\n",
					m.Time, m.Node, m.Direction, m.Interface, m.Message)
			}

			fmt.Fprintf(out, "%d of %d messages\n", len(rows), total)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&q.Node, "node", "", "Only messages of this node.")
	f.StringVar(&q.Message, "message", "", "Only messages with this name.")
	f.StringVar(&q.Interface, "interface", "", "Only Um or A messages.")
	f.StringVar(&dir, "direction", "", "Only send or recv messages.")
	f.Float64Var(&from, "from", 0, "Start of the time range in seconds.")
	f.Float64Var(&to, "to", 1e9, "End of the time range in seconds.")
	f.IntVar(&q.Limit, "limit", 100, "Maximum rows, 0 for all.")
	f.IntVar(&q.Offset, "offset", 0, "Rows to skip.")

	return cmd
}
