// Package gpu discovers a GPU utilization reading on heterogeneous Linux
// hosts. Backends are tried in a fixed priority order and the first one
// that reports usage wins; partial readings from earlier backends (name,
// VRAM, temperature) are folded into the final snapshot.
package gpu

import (
	"context"
	"errors"
	"os/exec"

	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/procfs"
)

var (
	// ErrNoUsage is returned by a backend that found its device but no
	// usage reading. The accompanying snapshot may still carry VRAM or
	// temperature.
	ErrNoUsage = errors.New("gpu: no usage reading")

	// ErrProbeUnavailable is returned by a backend whose interface does not
	// exist on this host.
	ErrProbeUnavailable = errors.New("gpu: probe unavailable")
)

// DefaultName is the placeholder used until a backend names the device.
const DefaultName = "GPU"

// Prober is one step of the cascade.
type Prober interface {
	// Name identifies the backend in logs.
	Name() string
	// Probe returns a snapshot with HasUsage set on success. On failure it
	// returns ErrNoUsage or ErrProbeUnavailable, optionally with a partial
	// snapshot.
	Probe(ctx context.Context, mem model.MemorySnapshot) (model.GPUSnapshot, error)
}

// boardTemp is implemented by backends whose temperature is the shared
// thermal_zone0 reading. It never replaces one an earlier backend found.
type boardTemp interface {
	boardTemp()
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Output(ctx context.Context, name string, arg ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. Stderr is discarded.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, arg ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, arg...).Output()
}

// merge lays over on top of base. Fields over does not know keep the
// values base already collected.
func merge(base, over model.GPUSnapshot) model.GPUSnapshot {
	out := base
	if over.Name != "" {
		out.Name = over.Name
	}
	if over.HasUsage {
		out.Usage, out.HasUsage = over.Usage, true
	}
	if over.HasVRAM {
		out.VRAMUsed, out.VRAMTotal, out.HasVRAM = over.VRAMUsed, over.VRAMTotal, true
	}
	if over.HasTemp {
		out.TempC, out.HasTemp = over.TempC, true
	}
	return out
}

// zoneTemp reads thermal_zone0, the board temperature SoC GPUs share.
func zoneTemp(fs procfs.FS) (float64, bool) {
	milli, err := fs.ReadFloat(fs.SysPath("class", "thermal", "thermal_zone0", "temp"))
	if err != nil {
		return 0, false
	}
	return milli / 1000, true
}

// withCMA reports the CMA pool as VRAM when the kernel has one.
func withCMA(g model.GPUSnapshot, mem model.MemorySnapshot) model.GPUSnapshot {
	if mem.CMATotal == 0 {
		return g
	}
	g.VRAMUsed, g.VRAMTotal, g.HasVRAM = mem.CMAUsed, mem.CMATotal, true
	return g
}
