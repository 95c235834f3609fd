package gpu

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/procfs"
)

// Usage attributes relative to a DRM card, in the order drivers are known
// to expose them (amdgpu, i915/xe, then vendor kernels).
var drmUsageFiles = [][]string{
	{"device", "gpu_busy_percent"},
	{"gt", "gt0", "usage"},
	{"device", "usage"},
	{"device", "load"},
}

var pciVendors = map[string]string{
	"0x1002": "AMD GPU",
	"0x8086": "Intel GPU",
	"0x10de": "NVIDIA GPU",
	"0x14e4": "Broadcom GPU",
}

const videoCoreName = "VideoCore GPU"

// DRM walks /sys/class/drm/card*. It owns the V3D queue table, so one DRM
// value must be reused across samples.
type DRM struct {
	FS     procfs.FS
	queues queueTable
}

func (d *DRM) Name() string { return "drm" }

func (d *DRM) Probe(_ context.Context, mem model.MemorySnapshot) (model.GPUSnapshot, error) {
	entries, err := os.ReadDir(d.FS.SysPath("class", "drm"))
	if err != nil {
		return model.GPUSnapshot{}, ErrProbeUnavailable
	}

	g := model.GPUSnapshot{Name: DefaultName}
	for _, e := range entries {
		card := e.Name()
		if !strings.HasPrefix(card, "card") || strings.Contains(card, "-") {
			continue
		}
		g = d.probeCard(card, g, mem)
		if g.HasUsage {
			return g, nil
		}
	}
	return g, ErrNoUsage
}

// probeCard folds one card's readings into g.
func (d *DRM) probeCard(card string, g model.GPUSnapshot, mem model.MemorySnapshot) model.GPUSnapshot {
	path := func(elem ...string) string {
		return d.FS.SysPath(append([]string{"class", "drm", card}, elem...)...)
	}

	for _, rel := range drmUsageFiles {
		if v, err := d.FS.ReadFloat(path(rel...)); err == nil {
			g.Usage, g.HasUsage = v, true
			break
		}
	}
	if !g.HasUsage {
		if v, ok := d.v3dUsage(card, path("device", "gpu_stats")); ok {
			g.Usage, g.HasUsage = v, true
		}
	}

	if name, ok := d.vendorName(path); ok {
		g.Name = name
	}

	if t, ok := d.hwmonTemp(path("device", "hwmon")); ok {
		g.TempC, g.HasTemp = t, true
	} else if t, ok := zoneTemp(d.FS); ok {
		g.TempC, g.HasTemp = t, true
	}

	if !g.HasVRAM {
		if used, err := d.FS.ReadUint(path("tile0", "vram0", "used")); err == nil {
			g.VRAMUsed, g.HasVRAM = model.Bytes(used), true
			if size, err := d.FS.ReadUint(path("tile0", "vram0", "size")); err == nil {
				g.VRAMTotal = model.Bytes(size)
			}
		}
	}

	switch g.Name {
	case "Broadcom GPU", videoCoreName, DefaultName:
		if mem.CMATotal > 0 {
			g = withCMA(g, mem)
			if g.Name == DefaultName {
				g.Name = videoCoreName
			}
		}
	}
	return g
}

// v3dUsage reads the card's gpu_stats, falling back to debugfs.
func (d *DRM) v3dUsage(card, statsPath string) (float64, bool) {
	f, err := os.Open(statsPath)
	if err != nil {
		n := strings.TrimPrefix(card, "card")
		if n == "" || n[0] < '0' || n[0] > '9' {
			return 0, false
		}
		f, err = os.Open(d.FS.SysPath("kernel", "debug", "dri", n, "gpu_stats"))
		if err != nil {
			return 0, false
		}
	}
	defer f.Close()
	return d.queues.readGPUStats(f)
}

func (d *DRM) vendorName(path func(...string) string) (string, bool) {
	if vendor, err := d.FS.ReadString(path("device", "vendor")); err == nil {
		for id, name := range pciVendors {
			if strings.Contains(vendor, id) {
				return name, true
			}
		}
	}
	uevent, err := d.FS.ReadString(path("device", "uevent"))
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(uevent, "\n") {
		if strings.Contains(line, "DRIVER=v3d") || strings.Contains(line, "DRIVER=vc4") {
			return videoCoreName, true
		}
	}
	return "", false
}

// hwmonTemp returns temp1_input of the first hwmon child that has one.
func (d *DRM) hwmonTemp(dir string) (float64, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, false
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "hwmon") {
			continue
		}
		milli, err := d.FS.ReadFloat(filepath.Join(dir, e.Name(), "temp1_input"))
		if err != nil {
			continue
		}
		return milli / 1000, true
	}
	return 0, false
}
