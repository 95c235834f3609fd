//go:build linux

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/utop-dev/utop/internal/config"
	"github.com/utop-dev/utop/internal/gpu"
	"github.com/utop-dev/utop/internal/procfs"
	"github.com/utop-dev/utop/internal/sampler"
	"github.com/utop-dev/utop/internal/term"
	"github.com/utop-dev/utop/internal/ui"
)

// Exit statuses other than the signal number.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.Default()
	config.ApplyEnv(&cfg, os.Getenv)

	code := -1
	root := &cobra.Command{
		Use:   "utop",
		Short: "Terminal system monitor",
		Long: `utop shows CPU, memory, swap, CMA, GPU and network usage above a
sortable, filterable process table. It reads /proc and /sys directly and
probes nvidia-smi, DRM, V3D, Adreno and devfreq for GPU load.

Keys:
  q, Ctrl-C        quit
  j/k, Up/Down     move the selection
  h/l, Left/Right  sort by CPU / memory
  /                filter by name or pid (Enter keeps, Esc leaves)
  Esc              clear the filter`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			var err error
			code, err = dashboard(cmd.Context(), cfg)
			return err
		},
	}
	root.SetArgs(args)
	config.BindFlags(root.Flags(), &cfg)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "utop:", err)
		if code < 0 {
			return exitUsage
		}
		if code == exitOK {
			return exitFailure
		}
	}
	if code < 0 {
		// --help and friends return without running the dashboard.
		return exitOK
	}
	return code
}

// dashboard owns the terminal from acquisition to release. The returned
// code is the process exit status.
func dashboard(ctx context.Context, cfg config.Config) (code int, err error) {
	logger, closeLog, err := openLog(cfg)
	if err != nil {
		return exitFailure, err
	}
	defer closeLog()

	fs := procfs.NewFS(cfg.ProcRoot, cfg.SysRoot)
	opts := sampler.Options{Host: sampler.PsutilHost{FS: fs}, Logger: logger}
	if cfg.EnableGPU {
		opts.GPU = gpu.NewCascade(gpu.Options{
			FS:        fs,
			NvidiaSMI: cfg.NvidiaSMI,
			Timeout:   cfg.GPUProbeTimeout,
			TTL:       cfg.GPUCacheTTL,
			Logger:    logger,
		})
	}
	smp := sampler.New(fs, opts)

	tty, err := term.Acquire(os.Stdin, os.Stdout, logger)
	if err != nil {
		return exitFailure, err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tty.Release()
			logger.Error("panic", "panic", r, "stack", string(debug.Stack()))
			code, err = exitFailure, fmt.Errorf("internal error: %v", r)
			return
		}
		if rerr := tty.Release(); rerr != nil {
			logger.Warn("restoring terminal", "err", rerr)
			if err == nil && code == exitOK {
				code, err = exitFailure, rerr
			}
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	m := ui.NewModel(cfg.SortMode(), cfg.Filter)
	loop := ui.NewLoop(tty, smp, m, ui.LoopOptions{
		SampleInterval: cfg.SampleInterval,
		RenderInterval: cfg.RenderInterval,
		PollTimeout:    cfg.PollTimeout,
		Signals:        sigs,
		Logger:         logger,
	})
	code, err = loop.Run(ctx)
	logger.Info("exiting", "code", code, "err", err)
	return code, err
}

// openLog returns a text logger writing to cfg.LogFile, or a discarding
// one. The dashboard owns stdout so logs never go there.
func openLog(cfg config.Config) (*slog.Logger, func(), error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = io.Discard
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), closeFn, nil
}
