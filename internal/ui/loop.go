package ui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/term"
)

// Default loop cadence.
const (
	DefaultSampleInterval = 500 * time.Millisecond
	DefaultRenderInterval = 16 * time.Millisecond
	DefaultPollTimeout    = 10 * time.Millisecond
)

// Screen is the terminal the loop draws on and reads keys from.
// *term.Terminal implements it.
type Screen interface {
	io.Writer
	Size() (cols, rows int)
	Poll(timeout time.Duration) (bool, error)
	ReadKeys() ([]term.Key, error)
}

// SampleSource produces snapshots. *sampler.Sampler implements it.
type SampleSource interface {
	Sample(ctx context.Context, mode model.SortMode, filter string) model.Sample
}

// LoopOptions tunes the loop. Zero durations pick the defaults.
type LoopOptions struct {
	SampleInterval time.Duration
	RenderInterval time.Duration
	PollTimeout    time.Duration
	Now            func() time.Time
	Signals        <-chan os.Signal
	Logger         *slog.Logger
}

// Loop is the single-threaded event loop: sample on a timer or when the
// model asks, render when dirty and the frame budget allows, then poll for
// input.
type Loop struct {
	screen Screen
	source SampleSource
	model  *Model
	view   *View
	opts   LoopOptions

	latest     model.Sample
	lastSample time.Time
	lastRender time.Time
}

func NewLoop(screen Screen, source SampleSource, m *Model, opts LoopOptions) *Loop {
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}
	if opts.RenderInterval <= 0 {
		opts.RenderInterval = DefaultRenderInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loop{
		screen: screen,
		source: source,
		model:  m,
		view:   NewView(),
		opts:   opts,
		latest: model.Zero(),
	}
}

// Run blocks until the user quits, a signal arrives or ctx is done. The
// exit code is 0 on quit and the signal number on a signal.
func (l *Loop) Run(ctx context.Context) (int, error) {
	log := l.opts.Logger
	l.lastSample = l.opts.Now()

	for {
		select {
		case <-ctx.Done():
			return 0, nil
		case sig := <-l.opts.Signals:
			log.Info("received signal", "signal", sig)
			return signalCode(sig), nil
		default:
		}

		now := l.opts.Now()
		if l.model.NeedsSample || now.Sub(l.lastSample) >= l.opts.SampleInterval {
			l.latest = l.source.Sample(ctx, l.model.Sort, l.model.Filter)
			l.lastSample = now
			l.model.NeedsSample = false
			l.model.NeedsRender = true
		}

		if l.model.NeedsRender && now.Sub(l.lastRender) >= l.opts.RenderInterval {
			cols, rows := l.screen.Size()
			frame := l.view.Render(l.latest, l.model, cols, rows)
			if _, err := io.WriteString(l.screen, frame); err != nil {
				log.Debug("render", "err", err)
			}
			l.lastRender = now
			l.model.NeedsRender = false
		}

		ready, err := l.screen.Poll(l.opts.PollTimeout)
		if err != nil {
			return 1, fmt.Errorf("polling input: %w", err)
		}
		if !ready {
			continue
		}
		keys, err := l.screen.ReadKeys()
		if err != nil {
			log.Debug("read keys", "err", err)
		}
		for _, k := range keys {
			if l.model.HandleKey(k) == ActionQuit {
				log.Info("quit requested", "key", k.Type.String())
				return 0, nil
			}
		}
	}
}

// signalCode maps a signal to the process exit status.
func signalCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return 1
}
