package gpu

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/procfs"
)

const (
	DefaultTTL     = 800 * time.Millisecond
	DefaultTimeout = 750 * time.Millisecond
)

// Options configures a Cascade. Zero values pick the defaults.
type Options struct {
	FS        procfs.FS
	NvidiaSMI string // empty skips the NVIDIA backend
	Timeout   time.Duration
	TTL       time.Duration
	Runner    CommandRunner
	Now       func() time.Time
	Logger    *slog.Logger

	// Probers replaces the built-in backend list.
	Probers []Prober
}

// Cascade runs the backends in priority order and caches the merged result.
// It is not safe for concurrent use.
type Cascade struct {
	probers []Prober
	ttl     time.Duration
	now     func() time.Time
	log     *slog.Logger

	cached  model.GPUSnapshot
	last    time.Time
	primed  bool
	backend string
}

// NewCascade builds the default backend order: nvidia-smi, DRM cards,
// Adreno, devfreq, then the CMA fallback.
func NewCascade(opts Options) *Cascade {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	probers := opts.Probers
	if probers == nil {
		if opts.NvidiaSMI != "" {
			probers = append(probers, &Nvidia{Path: opts.NvidiaSMI, Timeout: opts.Timeout, Runner: opts.Runner})
		}
		probers = append(probers,
			&DRM{FS: opts.FS},
			&Adreno{FS: opts.FS},
			&Devfreq{FS: opts.FS},
			&CMAFallback{FS: opts.FS},
		)
	}

	return &Cascade{
		probers: probers,
		ttl:     opts.TTL,
		now:     opts.Now,
		log:     opts.Logger,
		cached:  model.GPUSnapshot{Name: DefaultName},
	}
}

// Probe returns the GPU snapshot, re-running the backends at most once per
// TTL. The returned snapshot always has a name.
func (c *Cascade) Probe(ctx context.Context, mem model.MemorySnapshot) model.GPUSnapshot {
	now := c.now()
	if c.primed && now.Sub(c.last) < c.ttl {
		return c.cached
	}
	c.last, c.primed = now, true

	g := model.GPUSnapshot{Name: DefaultName}
	backend := ""
	for _, p := range c.probers {
		snap, err := p.Probe(ctx, mem)
		if err == nil && snap.HasUsage {
			if _, ok := p.(boardTemp); ok && g.HasTemp {
				snap.TempC, snap.HasTemp = 0, false
			}
			g = merge(g, snap)
			backend = p.Name()
			break
		}
		if errors.Is(err, ErrNoUsage) {
			g = fill(g, snap)
			if backend == "" && snap.Renderable() {
				backend = p.Name()
			}
			continue
		}
		c.log.Debug("gpu backend skipped", "backend", p.Name(), "err", err)
	}

	if backend != c.backend {
		c.log.Debug("gpu backend selected", "backend", backend, "name", g.Name)
		c.backend = backend
	}
	c.cached = g
	return g
}

// fill copies from partial only what g does not have yet.
func fill(g, partial model.GPUSnapshot) model.GPUSnapshot {
	if !g.HasVRAM && partial.HasVRAM {
		if partial.Name != "" {
			g.Name = partial.Name
		}
		g.VRAMUsed, g.VRAMTotal, g.HasVRAM = partial.VRAMUsed, partial.VRAMTotal, true
	} else if g.Name == DefaultName && partial.Name != "" {
		g.Name = partial.Name
	}
	if !g.HasTemp && partial.HasTemp {
		g.TempC, g.HasTemp = partial.TempC, true
	}
	return g
}
