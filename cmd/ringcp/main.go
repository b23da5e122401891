package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/ringcp/internal/config"
	"github.com/bamsammich/ringcp/internal/engine"
	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/fsutil"
	"github.com/bamsammich/ringcp/internal/platform"
	"github.com/bamsammich/ringcp/internal/stats"
	"github.com/bamsammich/ringcp/internal/ui"
	"github.com/bamsammich/ringcp/internal/ui/tui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// options holds the flag values shared by the copy and bench commands.
type options struct {
	slotCapacity string
	poolSize     int
	backend      string
	queueDepth   int
	bwLimit      string
	verbose      bool
	quiet        bool
	noProgress   bool
	tuiFlag      bool
	logFile      string
	showVersion  bool
}

func run() int {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "ringcp [flags] <source> <destination>",
		Short: "Copy a file through a pool of buffers with vectored or io_uring I/O",
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintf(os.Stdout, "ringcp %s\n", version)
				return nil
			}
			return runCopy(cmd, &opts, args[0], args[1])
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.slotCapacity, "slot-capacity", "8K", "bytes per buffer slot (e.g. 8K, 1M)")
	flags.IntVar(&opts.poolSize, "pool-size", engine.DefaultPoolSize, "number of buffer slots")
	flags.StringVar(&opts.backend, "backend", "ring", "I/O backend: sync, vectored, ring or emulated")
	flags.IntVar(&opts.queueDepth, "queue-depth", 0, "ring submissions in flight (default: pool size)")
	flags.StringVar(&opts.bwLimit, "bwlimit", "", "bandwidth limit (e.g. 100M, 1G)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")
	flags.StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "disable progress display")
	rootCmd.Flags().BoolVar(&opts.tuiFlag, "tui", false, "full-screen TUI (Bubble Tea) with batch log and slot view")
	rootCmd.Flags().BoolVar(&opts.showVersion, "version", false, "print version and exit")

	rootCmd.AddCommand(newBenchCmd(&opts))
	rootCmd.AddCommand(newDocsCmd())

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

//nolint:gocyclo // CLI entry point wires every component of a copy
func runCopy(cmd *cobra.Command, opts *options, rawSrc, rawDst string) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
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

	src, size, err := fsutil.OpenSource(rawSrc)
	if err != nil {
		return err
	}
	defer src.Close()

	dstPath, err := fsutil.ResolveDestination(rawSrc, rawDst)
	if err != nil {
		return err
	}

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	target, err := fsutil.CreateTarget(dstPath, size, info.Mode())
	if err != nil {
		return err
	}
	defer target.Abort() //nolint:errcheck // no-op after Commit

	// Set up context with signal handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer fsutil.CleanupTemps()

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)
	engineCfg.Events = events
	engineCfg.Stats = collector

	presenterEvents := (<-chan event.Event)(events)
	if opts.logFile != "" {
		presenterEvents = teeEvents(events)
	}

	isTTY := ui.IsTTY(os.Stderr.Fd())
	useTUI := opts.tuiFlag && isTTY && !opts.quiet
	var presenter ui.Presenter
	if useTUI {
		presenter = tui.NewPresenter(tui.Config{
			Stats:    collector,
			PoolSize: engineCfg.PoolSize,
			Src:      rawSrc,
			Dst:      dstPath,
			Theme:    cfg.Theme,
		})
	} else {
		if opts.tuiFlag && !isTTY {
			slog.Warn("--tui requires a terminal, falling back to inline output")
		}
		presenter = ui.NewPresenter(ui.Config{
			Writer:     os.Stderr,
			Stats:      collector,
			Src:        rawSrc,
			Dst:        dstPath,
			Width:      ui.TermWidth(os.Stderr.Fd()),
			PoolSize:   engineCfg.PoolSize,
			IsTTY:      isTTY,
			Color:      ui.UseColor(os.Stderr.Fd()),
			Quiet:      opts.quiet,
			Verbose:    opts.verbose,
			NoProgress: opts.noProgress,
		})
	}

	slog.Debug("starting copy",
		"src", rawSrc,
		"dst", dstPath,
		"size", size,
		"backend", engineCfg.Backend,
		"slot_capacity", engineCfg.SlotCapacity,
		"pool_size", engineCfg.PoolSize,
		"tui", useTUI,
	)

	var result engine.Result
	if useTUI {
		// Bubble Tea needs the foreground to own stdin, so the engine runs
		// in the background and is cancelled if the user quits early.
		engineCtx, engineCancel := context.WithCancel(ctx)
		defer engineCancel()

		var engineWg sync.WaitGroup
		engineWg.Add(1)
		go func() {
			defer engineWg.Done()
			result = engine.Copy(engineCtx, src, target.File(), size, engineCfg)
			close(events)
		}()

		if err := presenter.Run(presenterEvents); err != nil {
			slog.Warn("tui exited", "error", err)
		}

		engineCancel()
		engineWg.Wait()
		stop()
	} else {
		// Inline mode: presenter in background, engine in foreground.
		var presenterErr error
		var presenterWg sync.WaitGroup
		presenterWg.Add(1)
		go func() {
			defer presenterWg.Done()
			presenterErr = presenter.Run(presenterEvents)
		}()

		result = engine.Copy(ctx, src, target.File(), size, engineCfg)
		close(events)
		presenterWg.Wait()
		if presenterErr != nil {
			fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
		}
	}

	if engineCfg.Backend == platform.IOURing && result.Method != platform.IOURing {
		slog.Warn("io_uring unavailable, used fallback backend", "backend", result.Method)
	}

	if result.Err != nil {
		slog.Error("copy failed", "error", result.Err, "copied", result.BytesCopied, "size", size)
		return &exitError{code: 1}
	}
	if err := target.Commit(); err != nil {
		slog.Error("commit failed", "error", err)
		return &exitError{code: 1}
	}

	if !opts.quiet {
		fmt.Fprintln(os.Stderr, ui.CompletionSummary(result.Stats, result.Method.String(), ui.UseColor(os.Stderr.Fd())))
	}
	return nil
}

// engineConfig turns parsed flags into an engine configuration.
func engineConfig(opts *options) (engine.Config, error) {
	var cfg engine.Config

	slotCap, err := config.ParseSize(opts.slotCapacity)
	if err != nil {
		return cfg, fmt.Errorf("invalid --slot-capacity: %w", err)
	}
	if slotCap <= 0 || slotCap > 1<<30 {
		return cfg, fmt.Errorf("invalid --slot-capacity: %s out of range", opts.slotCapacity)
	}
	cfg.SlotCapacity = int(slotCap)

	if opts.poolSize <= 0 {
		return cfg, fmt.Errorf("invalid --pool-size: %d", opts.poolSize)
	}
	cfg.PoolSize = opts.poolSize

	if opts.queueDepth < 0 {
		return cfg, fmt.Errorf("invalid --queue-depth: %d", opts.queueDepth)
	}
	cfg.QueueDepth = opts.queueDepth

	cfg.Backend, err = platform.ParseMethod(opts.backend)
	if err != nil {
		return cfg, fmt.Errorf("invalid --backend: %w", err)
	}

	if opts.bwLimit != "" {
		n, err := config.ParseSize(opts.bwLimit)
		if err != nil {
			return cfg, fmt.Errorf("invalid --bwlimit: %w", err)
		}
		cfg.Limiter = engine.NewBWLimiter(n)
	}

	cfg.Logger = slog.Default()
	return cfg, nil
}

// setupLogging installs the default slog logger. The returned func closes the
// JSON log file, if any.
func setupLogging(opts *options) (func(), error) {
	logLevel := slog.LevelWarn
	if opts.verbose {
		logLevel = slog.LevelDebug
	} else if !opts.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	var logHandler slog.Handler = textHandler
	closeFn := func() {}
	if opts.logFile != "" {
		lf, err := os.Create(opts.logFile)
		if err != nil {
			return closeFn, fmt.Errorf("open log file: %w", err)
		}
		closeFn = func() { lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return closeFn, nil
}

// teeEvents writes a structured record for every event before forwarding it
// to the presenter.
func teeEvents(events <-chan event.Event) <-chan event.Event {
	teed := make(chan event.Event, 256)
	go func() {
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.Int64("offset", ev.Offset),
				slog.Int64("size", ev.Size),
				slog.Int("slots", ev.Slots),
				slog.Int64("total", ev.Total),
				slog.Int64("remaining", ev.Remaining),
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelDebug, "ringcp.event", attrs...)
			teed <- ev
		}
		close(teed)
	}()
	return teed
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, cfg config.Config, opts *options) {
	d := cfg.Defaults
	flags := cmd.Flags()
	if !flags.Changed("slot-capacity") && d.SlotCapacity != nil {
		opts.slotCapacity = *d.SlotCapacity
	}
	if !flags.Changed("pool-size") && d.PoolSize != nil {
		opts.poolSize = *d.PoolSize
	}
	if !flags.Changed("backend") && d.Backend != nil {
		opts.backend = *d.Backend
	}
	if !flags.Changed("queue-depth") && d.QueueDepth != nil {
		opts.queueDepth = *d.QueueDepth
	}
	if !flags.Changed("bwlimit") && d.BWLimit != nil {
		opts.bwLimit = *d.BWLimit
	}
	if flags.Lookup("tui") != nil && !flags.Changed("tui") && d.TUI != nil {
		opts.tuiFlag = *d.TUI
	}
	if flags.Lookup("no-progress") != nil && !flags.Changed("no-progress") && cfg.UI.Progress != nil {
		opts.noProgress = !*cfg.UI.Progress
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
