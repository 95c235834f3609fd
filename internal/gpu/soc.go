package gpu

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/procfs"
)

// Adreno reads Qualcomm's kgsl counters.
type Adreno struct {
	FS procfs.FS
}

func (a *Adreno) Name() string { return "adreno" }

func (a *Adreno) Probe(_ context.Context, _ model.MemorySnapshot) (model.GPUSnapshot, error) {
	dir := a.FS.SysPath("class", "kgsl", "kgsl-3d0")
	usage, ok := a.busyPercentage(dir)
	if !ok {
		usage, ok = a.gpuBusy(dir)
	}
	if !ok {
		return model.GPUSnapshot{}, ErrProbeUnavailable
	}
	g := model.GPUSnapshot{Name: "Adreno GPU", Usage: usage, HasUsage: true}
	if t, ok := zoneTemp(a.FS); ok {
		g.TempC, g.HasTemp = t, true
	}
	return g, nil
}

// busyPercentage accepts the file whenever it exists; an unparsable value
// reads as 0.
func (a *Adreno) busyPercentage(dir string) (float64, bool) {
	s, err := a.FS.ReadString(filepath.Join(dir, "gpu_busy_percentage"))
	if err != nil {
		return 0, false
	}
	v, _ := procfs.ParseLeadingFloat(s)
	return v, true
}

// gpuBusy parses "busy total" cycle counts. An idle reading is not trusted
// and lets the cascade fall through.
func (a *Adreno) gpuBusy(dir string) (float64, bool) {
	s, err := a.FS.ReadString(filepath.Join(dir, "gpubusy"))
	if err != nil {
		return 0, false
	}
	var busy, total uint64
	if n, _ := fmt.Sscan(s, &busy, &total); n != 2 || total == 0 || busy == 0 {
		return 0, false
	}
	return float64(busy) * 100 / float64(total), true
}

// Devfreq reads the generic devfreq "load" attribute of a GPU-like device.
type Devfreq struct {
	FS procfs.FS
}

func (d *Devfreq) Name() string { return "devfreq" }

func (d *Devfreq) boardTemp() {}

func (d *Devfreq) Probe(_ context.Context, _ model.MemorySnapshot) (model.GPUSnapshot, error) {
	dirs := []string{
		d.FS.SysPath("class", "devfreq"),
		d.FS.SysPath("devices", "platform", "soc", "soc:gpu", "devfreq"),
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !containsAny(name, "v3d", "gpu", "mali", "soc:gpu") {
				continue
			}
			load, err := d.FS.ReadString(filepath.Join(dir, name, "load"))
			if err != nil {
				continue
			}
			g := model.GPUSnapshot{Name: devfreqName(name), HasUsage: true}
			g.Usage = parseLoad(load)
			if t, ok := zoneTemp(d.FS); ok {
				g.TempC, g.HasTemp = t, true
			}
			return g, nil
		}
	}
	return model.GPUSnapshot{}, ErrProbeUnavailable
}

// parseLoad reads "NN@FREQ" (or plain "NN"); an unparsable value reads as 0.
func parseLoad(s string) float64 {
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	v, _ := procfs.ParseLeadingFloat(s)
	return v
}

// devfreqName names the device by its node name. An empty result keeps
// whatever name an earlier backend found.
func devfreqName(node string) string {
	switch {
	case containsAny(node, "v3d", "soc:gpu"):
		return videoCoreName
	case strings.Contains(node, "mali"):
		return "Mali GPU"
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CMAFallback reports the CMA pool of a VideoCore SoC when no backend
// found usage. It never reports usage itself.
type CMAFallback struct {
	FS procfs.FS
}

func (c *CMAFallback) Name() string { return "cma" }

func (c *CMAFallback) Probe(_ context.Context, mem model.MemorySnapshot) (model.GPUSnapshot, error) {
	if mem.CMATotal == 0 {
		return model.GPUSnapshot{}, ErrProbeUnavailable
	}
	g := withCMA(model.GPUSnapshot{Name: videoCoreName}, mem)
	if t, ok := zoneTemp(c.FS); ok {
		g.TempC, g.HasTemp = t, true
	}
	return g, ErrNoUsage
}
