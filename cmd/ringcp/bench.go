package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/ringcp/internal/config"
	"github.com/bamsammich/ringcp/internal/engine"
)

func newBenchCmd(opts *options) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "bench <file>",
		Short: "Measure copy throughput of every backend on a file",
		Long: "Copies up to 64 MB of <file> into a temporary file once per backend and\n" +
			"prints the throughput of each, with a suggested backend and pool size.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
			}
			applyConfigDefaults(cmd, cfg, opts)

			closeLog, err := setupLogging(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			engineCfg, err := engineConfig(opts)
			if err != nil {
				return err
			}
			// Throughput is what is being measured.
			engineCfg.Limiter = nil

			if dir == "" {
				dir = os.TempDir()
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := engine.RunBenchmark(ctx, args[0], dir, engineCfg)
			if len(result.Backends) > 0 && !opts.quiet {
				fmt.Fprintln(os.Stdout, engine.FormatBenchmark(result))
			}
			if err != nil {
				return fmt.Errorf("benchmark: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory for benchmark copies (default: system temp dir)")
	return cmd
}
