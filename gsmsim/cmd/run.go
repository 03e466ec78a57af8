package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/scenario"
	"github.com/sarchlab/gsmsim/simulation"
	"github.com/sarchlab/gsmsim/tracing"
)

type runOptions struct {
	scenario    string
	duration    time.Duration
	logLevel    string
	db          string
	record      bool
	monitor     bool
	monitorPort int
	openBrowser bool
	messages    bool
	parallelIDs bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.scenario, "scenario", "s", "", "Scenario file.")
	f.DurationVar(&opts.duration, "duration", 0,
		"Simulated time, overriding the scenario.")
	f.StringVar(&opts.logLevel, "log-level", "warn",
		"Log level: debug, info, warn, error or off.")
	f.StringVar(&opts.db, "db", "",
		"Trace database name, without the .sqlite3 suffix.")
	f.BoolVar(&opts.record, "record", true,
		"Record messages and node counters to the trace database.")
	f.BoolVar(&opts.monitor, "monitor", false, "Serve the monitor.")
	f.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Monitor port, random when unset.")
	f.BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitor page in a browser.")
	f.BoolVar(&opts.messages, "messages", false,
		"Print the message counts after the run.")
	f.BoolVar(&opts.parallelIDs, "parallel-ids", false,
		"Generate xid event IDs instead of sequential ones.")

	return cmd
}

func run(out io.Writer, opts *runOptions) error {
	if opts.scenario == "" {
		return errors.New("no scenario given, use --scenario")
	}

	cfg, err := scenario.Load(opts.scenario)
	if err != nil {
		return err
	}

	if opts.duration > 0 {
		cfg.Duration = opts.duration
	}

	log, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}

	b := simulation.MakeBuilder().WithScenario(cfg).WithLogger(log)

	if opts.monitor {
		b = b.WithMonitorPort(opts.monitorPort)
	} else {
		b = b.WithoutMonitoring()
	}

	if opts.record {
		b = b.WithOutputFileName(opts.db)
	} else {
		b = b.WithoutRecording()
	}

	if opts.parallelIDs {
		b = b.WithParallelIDs()
	}

	s, err := b.Build()
	if err != nil {
		return err
	}
	defer s.Terminate()

	if url := s.MonitorURL(); url != "" {
		fmt.Fprintf(out, "Monitoring simulation with %s\n", url)

		if opts.openBrowser {
			if err := browser.OpenURL(url); err != nil {
				log.Warn("opening the browser", zap.Error(err))
			}
		}
	}

	if err := s.Run(); err != nil {
		return err
	}

	printSummary(out, s.Summary())

	if opts.messages {
		printMessages(out, s.MsgCounter())
	}

	return nil
}

func printSummary(out io.Writer, sum simulation.Summary) {
	fmt.Fprintf(out, "simulated %.3fs\n", float64(sum.Now))
	fmt.Fprintf(out, "calls: %d requested, %d connected, %d completed, "+
		"%d dropped, %d rejected\n",
		sum.Switch.CallRequests, sum.Switch.CallsConnected,
		sum.Switch.CallsCompleted, sum.Switch.CallsDropped,
		sum.Switch.CallsRejected)
	fmt.Fprintf(out, "handovers: %d, failed %d\n",
		sum.Switch.Handovers, sum.Switch.HandoverFailures)
	fmt.Fprintf(out, "location updates: %d, rejected %d\n",
		sum.Switch.LocationUpdates, sum.Switch.LocationUpdateRejects)
	fmt.Fprintf(out, "radio bursts: %d up, %d down, %d broadcast, "+
		"%d undelivered\n",
		sum.Medium.Uplink, sum.Medium.Downlink, sum.Medium.Broadcast,
		sum.Medium.Undelivered)
	fmt.Fprintf(out, "call setup: %d measured, %d aborted, "+
		"average %.3fs, max %.3fs\n",
		sum.CallSetup.Count, sum.CallSetup.Aborted,
		float64(sum.CallSetup.Average), float64(sum.CallSetup.Max))
	fmt.Fprintf(out, "location update: %d measured, average %.3fs\n",
		sum.LocationUpdate.Count, float64(sum.LocationUpdate.Average))
	fmt.Fprintf(out, "messages sent: %d, IP packets: %d, lost %d\n",
		sum.Messages, sum.PacketsIP, sum.PacketsLost)
}

func printMessages(out io.Writer, c *tracing.MsgCounter) {
	for _, count := range c.Counts() {
		fmt.Fprintf(out, "%-28s %-2s %-4s %d\n",
			count.Message, count.Interface, count.Direction, count.Count)
	}
}
