package gpu

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/procfs"
)

// mockRunner answers commands keyed by "name arg1 arg2 ...".
type mockRunner struct {
	outputs map[string]string
	err     error
	calls   int
}

func (m *mockRunner) Output(_ context.Context, name string, arg ...string) ([]byte, error) {
	m.calls++
	key := name + " " + strings.Join(arg, " ")
	if out, ok := m.outputs[key]; ok {
		return []byte(out), m.err
	}
	return nil, fmt.Errorf("mock command not found: %s", key)
}

// countingProber returns a fixed result and counts invocations.
type countingProber struct {
	name  string
	snap  model.GPUSnapshot
	err   error
	calls int
}

func (c *countingProber) Name() string { return c.name }

func (c *countingProber) Probe(context.Context, model.MemorySnapshot) (model.GPUSnapshot, error) {
	c.calls++
	return c.snap, c.err
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fixtureFS(t *testing.T) procfs.FS {
	t.Helper()
	root := t.TempDir()
	return procfs.FS{ProcRoot: filepath.Join(root, "proc"), SysRoot: filepath.Join(root, "sys")}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

const smiKey = DefaultNvidiaSMI + " --query-gpu=utilization.gpu,memory.used,memory.total,temperature.gpu --format=csv,noheader,nounits"

func TestParseNvidiaSMI(t *testing.T) {
	g, err := parseNvidiaSMI([]byte("45, 2048, 8192, 61\n30, 1, 2, 3\n"))
	require.NoError(t, err)
	assert.Equal(t, model.GPUSnapshot{
		Name:      "NVIDIA GPU",
		Usage:     45,
		HasUsage:  true,
		VRAMUsed:  2 * model.GiB,
		VRAMTotal: 8 * model.GiB,
		HasVRAM:   true,
		TempC:     61,
		HasTemp:   true,
	}, g)

	_, err = parseNvidiaSMI([]byte("[N/A], 1, 2, 3\n"))
	assert.ErrorIs(t, err, ErrNoUsage)

	_, err = parseNvidiaSMI(nil)
	assert.ErrorIs(t, err, ErrNoUsage)

	g, err = parseNvidiaSMI([]byte("12\n"))
	require.NoError(t, err)
	assert.False(t, g.HasVRAM)
	assert.False(t, g.HasTemp)
}

func TestNvidiaProbe(t *testing.T) {
	runner := &mockRunner{outputs: map[string]string{smiKey: "99, 100, 200, 70\n"}}
	n := &Nvidia{Path: DefaultNvidiaSMI, Runner: runner}
	g, err := n.Probe(context.Background(), model.MemorySnapshot{})
	require.NoError(t, err)
	assert.Equal(t, 99.0, g.Usage)
	assert.Equal(t, model.Bytes(100*model.MiB), g.VRAMUsed)

	missing := &Nvidia{Path: DefaultNvidiaSMI, Runner: &mockRunner{}}
	_, err = missing.Probe(context.Background(), model.MemorySnapshot{})
	assert.ErrorIs(t, err, ErrProbeUnavailable)
}

func TestCascade_FirstUsageWins(t *testing.T) {
	fs := fixtureFS(t)
	writeFile(t, fs.SysRoot, "class/drm/card0/device/gpu_busy_percent", "10\n")
	runner := &mockRunner{outputs: map[string]string{smiKey: "45, 2048, 8192, 61\n"}}
	later := &countingProber{name: "later", snap: model.GPUSnapshot{Name: "X", HasUsage: true}}

	c := NewCascade(Options{
		Probers: []Prober{&Nvidia{Path: DefaultNvidiaSMI, Runner: runner}, &DRM{FS: fs}, later},
	})
	g := c.Probe(context.Background(), model.MemorySnapshot{})
	assert.Equal(t, "NVIDIA GPU", g.Name)
	assert.Equal(t, 45.0, g.Usage)
	assert.Equal(t, 1, runner.calls)
	assert.Zero(t, later.calls)
}

func TestCascade_FallsThroughUnavailable(t *testing.T) {
	first := &countingProber{name: "a", err: ErrProbeUnavailable}
	second := &countingProber{name: "b", snap: model.GPUSnapshot{Name: "B GPU", Usage: 7, HasUsage: true}}
	third := &countingProber{name: "c", snap: model.GPUSnapshot{Name: "C GPU", HasUsage: true}}

	c := NewCascade(Options{Probers: []Prober{first, second, third}})
	g := c.Probe(context.Background(), model.MemorySnapshot{})
	assert.Equal(t, "B GPU", g.Name)
	assert.Equal(t, []int{1, 1, 0}, []int{first.calls, second.calls, third.calls})
}

func TestCascade_PartialReadingsCarryOver(t *testing.T) {
	partial := &countingProber{name: "drm", err: ErrNoUsage, snap: model.GPUSnapshot{
		Name: "Broadcom GPU", VRAMUsed: 1, VRAMTotal: 2, HasVRAM: true, TempC: 50, HasTemp: true,
	}}
	winner := &countingProber{name: "devfreq", snap: model.GPUSnapshot{Usage: 33, HasUsage: true}}

	c := NewCascade(Options{Probers: []Prober{partial, winner}})
	g := c.Probe(context.Background(), model.MemorySnapshot{})
	assert.Equal(t, model.GPUSnapshot{
		Name: "Broadcom GPU", Usage: 33, HasUsage: true,
		VRAMUsed: 1, VRAMTotal: 2, HasVRAM: true, TempC: 50, HasTemp: true,
	}, g)
}

func TestCascade_Cache(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := &countingProber{name: "p", snap: model.GPUSnapshot{Name: "First GPU", Usage: 1, HasUsage: true}}
	c := NewCascade(Options{Probers: []Prober{p}, Now: clock.Now})

	g1 := c.Probe(context.Background(), model.MemorySnapshot{})
	p.snap.Name = "Second GPU"
	clock.Advance(799 * time.Millisecond)
	g2 := c.Probe(context.Background(), model.MemorySnapshot{})
	assert.Equal(t, g1.Name, g2.Name)
	assert.Equal(t, 1, p.calls)

	clock.Advance(time.Millisecond)
	g3 := c.Probe(context.Background(), model.MemorySnapshot{})
	assert.Equal(t, "Second GPU", g3.Name)
	assert.Equal(t, 2, p.calls)
}

func TestCascade_NothingFound(t *testing.T) {
	fs := fixtureFS(t)
	c := NewCascade(Options{FS: fs, NvidiaSMI: DefaultNvidiaSMI, Runner: &mockRunner{}})
	g := c.Probe(context.Background(), model.MemorySnapshot{})
	assert.Equal(t, model.GPUSnapshot{Name: DefaultName}, g)
	assert.False(t, g.Renderable())
}

func TestCascade_CMAFallback(t *testing.T) {
	fs := fixtureFS(t)
	writeFile(t, fs.SysRoot, "class/thermal/thermal_zone0/temp", "48500\n")
	mem := model.MemorySnapshot{CMATotal: 256 * model.MiB, CMAUsed: 64 * model.MiB}

	c := NewCascade(Options{FS: fs})
	g := c.Probe(context.Background(), mem)
	assert.Equal(t, model.GPUSnapshot{
		Name: "VideoCore GPU", VRAMUsed: 64 * model.MiB, VRAMTotal: 256 * model.MiB, HasVRAM: true,
		TempC: 48.5, HasTemp: true,
	}, g)
}

func TestQueueTable_V3DUsage(t *testing.T) {
	var q queueTable
	_, ok := q.readGPUStats(strings.NewReader("queue timestamp jobs runtime\nbin 1000000000 _ 500000000\n"))
	assert.False(t, ok, "first sighting only seeds the table")

	usage, ok := q.readGPUStats(strings.NewReader("queue timestamp jobs runtime\nbin 2000000000 _ 1000000000\n"))
	require.True(t, ok)
	assert.InDelta(t, 50.0, usage, 1e-9)
}

func TestQueueTable_MaxAcrossQueues(t *testing.T) {
	var q queueTable
	q.observe("bin", 0, 0)
	q.observe("render", 0, 0)
	q.observe("bin", 100, 10)
	u, ok := q.observe("render", 100, 80)
	require.True(t, ok)
	assert.InDelta(t, 80.0, u, 1e-9)

	stats := "hdr\nbin 200 5 30\nrender 200 5 90\ncsd 200 0 0\n"
	usage, ok := q.readGPUStats(strings.NewReader(stats))
	require.True(t, ok)
	assert.InDelta(t, 20.0, usage, 1e-9)

	// timestamps that do not advance yield no reading, runtime regressions read as 0
	_, ok = q.observe("bin", 200, 40)
	assert.False(t, ok)
	u, ok = q.observe("bin", 300, 0)
	require.True(t, ok)
	assert.Zero(t, u)
}

func TestQueueTable_Bounded(t *testing.T) {
	var q queueTable
	for i := 0; i < maxQueues+4; i++ {
		q.observe(fmt.Sprintf("q%d", i), 1, 1)
	}
	assert.Equal(t, maxQueues, q.len())

	_, ok := q.observe(fmt.Sprintf("q%d", maxQueues+1), 2, 2)
	assert.False(t, ok, "untracked queue never reports")
	_, ok = q.observe("q0", 2, 2)
	assert.True(t, ok)
}

func TestDRM_AMD(t *testing.T) {
	fs := fixtureFS(t)
	writeFile(t, fs.SysRoot, "class/drm/card0-DP-1/status", "connected\n")
	writeFile(t, fs.SysRoot, "class/drm/card0/device/gpu_busy_percent", "37\n")
	writeFile(t, fs.SysRoot, "class/drm/card0/device/vendor", "0x1002\n")
	writeFile(t, fs.SysRoot, "class/drm/card0/device/hwmon/hwmon3/temp1_input", "55000\n")
	writeFile(t, fs.SysRoot, "class/thermal/thermal_zone0/temp", "30000\n")

	g, err := (&DRM{FS: fs}).Probe(context.Background(), model.MemorySnapshot{})
	require.NoError(t, err)
	assert.Equal(t, model.GPUSnapshot{Name: "AMD GPU", Usage: 37, HasUsage: true, TempC: 55, HasTemp: true}, g)
}

func TestDRM_IntelVRAM(t *testing.T) {
	fs := fixtureFS(t)
	writeFile(t, fs.SysRoot, "class/drm/card1/gt/gt0/usage", "12.5\n")
	writeFile(t, fs.SysRoot, "class/drm/card1/device/vendor", "0x8086\n")
	writeFile(t, fs.SysRoot, "class/drm/card1/tile0/vram0/used", "1073741824\n")
	writeFile(t, fs.SysRoot, "class/drm/card1/tile0/vram0/size", "4294967296\n")

	g, err := (&DRM{FS: fs}).Probe(context.Background(), model.MemorySnapshot{CMATotal: model.MiB})
	require.NoError(t, err)
	assert.Equal(t, "Intel GPU", g.Name)
	assert.Equal(t, 12.5, g.Usage)
	assert.Equal(t, model.Bytes(model.GiB), g.VRAMUsed)
	assert.Equal(t, model.Bytes(4*model.GiB), g.VRAMTotal)
	assert.False(t, g.HasTemp)
}

func TestDRM_V3DDebugfsWithCMA(t *testing.T) {
	fs := fixtureFS(t)
	writeFile(t, fs.SysRoot, "class/drm/card0/device/uevent", "DRIVER=v3d\nOF_NAME=v3d\n")
	stats := filepath.Join("kernel", "debug", "dri", "0", "gpu_stats")
	writeFile(t, fs.SysRoot, stats, "queue timestamp jobs runtime\nbin 1000000000 3 500000000\n")
	mem := model.MemorySnapshot{CMATotal: 512 * model.MiB, CMAUsed: 128 * model.MiB}

	d := &DRM{FS: fs}
	g, err := d.Probe(context.Background(), mem)
	assert.ErrorIs(t, err, ErrNoUsage)
	assert.Equal(t, "VideoCore GPU", g.Name)
	assert.True(t, g.HasVRAM)
	assert.Equal(t, model.Bytes(128*model.MiB), g.VRAMUsed)

	writeFile(t, fs.SysRoot, stats, "queue timestamp jobs runtime\nbin 2000000000 9 1000000000\n")
	g, err = d.Probe(context.Background(), mem)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, g.Usage, 1e-9)
}

func TestDRM_UnknownNameTakesCMA(t *testing.T) {
	fs := fixtureFS(t)
	writeFile(t, fs.SysRoot, "class/drm/card0/device/load", "5\n")
	mem := model.MemorySnapshot{CMATotal: 10, CMAUsed: 4}

	g, err := (&DRM{FS: fs}).Probe(context.Background(), mem)
	require.NoError(t, err)
	assert.Equal(t, "VideoCore GPU", g.Name)
	assert.Equal(t, model.Bytes(4), g.VRAMUsed)
}

func TestDRM_NoClass(t *testing.T) {
	_, err := (&DRM{FS: fixtureFS(t)}).Probe(context.Background(), model.MemorySnapshot{})
	assert.True(t, errors.Is(err, ErrProbeUnavailable))
}

func TestAdreno(t *testing.T) {
	t.Run("percentage", func(t *testing.T) {
		fs := fixtureFS(t)
		writeFile(t, fs.SysRoot, "class/kgsl/kgsl-3d0/gpu_busy_percentage", "23 %\n")
		writeFile(t, fs.SysRoot, "class/thermal/thermal_zone0/temp", "41000\n")
		g, err := (&Adreno{FS: fs}).Probe(context.Background(), model.MemorySnapshot{})
		require.NoError(t, err)
		assert.Equal(t, model.GPUSnapshot{Name: "Adreno GPU", Usage: 23, HasUsage: true, TempC: 41, HasTemp: true}, g)
	})
	t.Run("gpubusy", func(t *testing.T) {
		fs := fixtureFS(t)
		writeFile(t, fs.SysRoot, "class/kgsl/kgsl-3d0/gpubusy", "  250   1000\n")
		g, err := (&Adreno{FS: fs}).Probe(context.Background(), model.MemorySnapshot{})
		require.NoError(t, err)
		assert.InDelta(t, 25.0, g.Usage, 1e-9)
	})
	t.Run("gpubusy_zero_total", func(t *testing.T) {
		fs := fixtureFS(t)
		writeFile(t, fs.SysRoot, "class/kgsl/kgsl-3d0/gpubusy", "0 0\n")
		_, err := (&Adreno{FS: fs}).Probe(context.Background(), model.MemorySnapshot{})
		assert.ErrorIs(t, err, ErrProbeUnavailable)
	})
	t.Run("gpubusy_idle_falls_through", func(t *testing.T) {
		fs := fixtureFS(t)
		writeFile(t, fs.SysRoot, "class/kgsl/kgsl-3d0/gpubusy", "0 1000\n")
		_, err := (&Adreno{FS: fs}).Probe(context.Background(), model.MemorySnapshot{})
		assert.ErrorIs(t, err, ErrProbeUnavailable)
	})
	t.Run("percentage_unparsable_reads_zero", func(t *testing.T) {
		fs := fixtureFS(t)
		writeFile(t, fs.SysRoot, "class/kgsl/kgsl-3d0/gpu_busy_percentage", "n/a\n")
		writeFile(t, fs.SysRoot, "class/kgsl/kgsl-3d0/gpubusy", "250 1000\n")
		g, err := (&Adreno{FS: fs}).Probe(context.Background(), model.MemorySnapshot{})
		require.NoError(t, err)
		assert.True(t, g.HasUsage)
		assert.Zero(t, g.Usage, "percentage file wins even when unreadable")
	})
}

func TestCascade_DevfreqKeepsEarlierTemp(t *testing.T) {
	fs := fixtureFS(t)
	writeFile(t, fs.SysRoot, "class/devfreq/ff9a0000.mali/load", "42@800000000Hz\n")
	writeFile(t, fs.SysRoot, "class/thermal/thermal_zone0/temp", "41000\n")
	hwmon := &countingProber{name: "drm", snap: model.GPUSnapshot{Name: DefaultName, TempC: 67, HasTemp: true}, err: ErrNoUsage}

	c := NewCascade(Options{FS: fs, Probers: []Prober{hwmon, &Devfreq{FS: fs}}})
	g := c.Probe(context.Background(), model.MemorySnapshot{})
	assert.Equal(t, "Mali GPU", g.Name)
	assert.Equal(t, 42.0, g.Usage)
	assert.Equal(t, 67.0, g.TempC, "device sensor beats thermal_zone0")

	alone := NewCascade(Options{FS: fs, Probers: []Prober{&Devfreq{FS: fs}}})
	assert.Equal(t, 41.0, alone.Probe(context.Background(), model.MemorySnapshot{}).TempC)
}

func TestDevfreq(t *testing.T) {
	fs := fixtureFS(t)
	writeFile(t, fs.SysRoot, "class/devfreq/ff9a0000.mali/load", "42@800000000Hz\n")
	writeFile(t, fs.SysRoot, "class/devfreq/dmc/load", "90@1000Hz\n")

	g, err := (&Devfreq{FS: fs}).Probe(context.Background(), model.MemorySnapshot{})
	require.NoError(t, err)
	assert.Equal(t, "Mali GPU", g.Name)
	assert.Equal(t, 42.0, g.Usage)

	fs = fixtureFS(t)
	writeFile(t, fs.SysRoot, "devices/platform/soc/soc:gpu/devfreq/v3d/load", "7\n")
	g, err = (&Devfreq{FS: fs}).Probe(context.Background(), model.MemorySnapshot{})
	require.NoError(t, err)
	assert.Equal(t, "VideoCore GPU", g.Name)
	assert.Equal(t, 7.0, g.Usage)
}

func TestParseLoad(t *testing.T) {
	assert.Equal(t, 42.0, parseLoad("42@800000000Hz"))
	assert.Equal(t, 0.0, parseLoad("@1"))
	assert.Equal(t, 12.0, parseLoad("12"))
}
