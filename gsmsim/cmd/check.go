package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/gsmsim/scenario"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check SCENARIO...",
		Short: "Validate scenario files.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0

			for _, path := range args {
				cfg, err := scenario.Load(path)
				if err != nil {
					cmd.PrintErrln(err)
					failed++

					continue
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"%s: %d cells, %d mobiles, %d subscribers, %s\n",
					path, len(cfg.BaseStations), len(cfg.Mobiles),
					len(cfg.MSC.Subscribers), cfg.Duration)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios invalid", failed, len(args))
			}

			return nil
		},
	}
}
