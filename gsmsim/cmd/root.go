// Package cmd provides the command-line interface of gsmsim.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

// EnvPrefix prefixes the environment variables that provide flag defaults.
// The flag --monitor-port is read from GSMSIM_MONITOR_PORT.
const EnvPrefix = "GSMSIM_"

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gsmsim",
		Short: "gsmsim simulates GSM layer 3 signaling.",
		Long: `gsmsim simulates the radio resource, mobility management and ` +
			`call control signaling between mobiles, base stations and a ` +
			`switch, driven by a YAML scenario.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadEnv(envFile); err != nil {
				return err
			}

			return applyEnv(cmd.Flags())
		},
	}

	root.PersistentFlags().String("env-file", ".env",
		"File with GSMSIM_* variables that provide flag defaults.")

	root.AddCommand(newRunCmd(), newCheckCmd(), newTraceCmd())

	return root
}

// Execute runs the command line and exits through atexit so the recorder
// gets flushed.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func loadEnv(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

// applyEnv sets every flag the user left alone from its environment
// variable.
func applyEnv(flags *pflag.FlagSet) error {
	var err error

	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}

		value, ok := os.LookupEnv(envName(f.Name))
		if !ok {
			return
		}

		if setErr := flags.Set(f.Name, value); setErr != nil {
			err = fmt.Errorf("%s: %w", envName(f.Name), setErr)
		}
	})

	return err
}

func envName(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
