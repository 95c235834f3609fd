package model

import (
	"fmt"
	"strings"
	"time"
)

// SortMode selects the primary key of the process list.
type SortMode int

const (
	SortCPU SortMode = iota
	SortMem
)

func (m SortMode) String() string {
	if m == SortMem {
		return "mem"
	}
	return "cpu"
}

// ParseSortMode accepts "cpu" or "mem" in any case.
func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu", "":
		return SortCPU, nil
	case "mem", "memory":
		return SortMem, nil
	}
	return SortCPU, fmt.Errorf("unknown sort mode %q (want cpu|mem)", s)
}

// NoTemperature marks a temperature that could not be read.
const NoTemperature = -1000.0

// CPUTotals holds the cumulative jiffy counters of the aggregate cpu line.
type CPUTotals struct {
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	IOWait  uint64
	IRQ     uint64
	SoftIRQ uint64
	Steal   uint64
}

func (c CPUTotals) Total() uint64 {
	return c.User + c.Nice + c.System + c.Idle + c.IOWait + c.IRQ + c.SoftIRQ + c.Steal
}

func (c CPUTotals) IdleTotal() uint64 { return c.Idle + c.IOWait }

func (c CPUTotals) fields() [8]uint64 {
	return [8]uint64{c.User, c.Nice, c.System, c.Idle, c.IOWait, c.IRQ, c.SoftIRQ, c.Steal}
}

// CPUDelta is the difference between two CPUTotals readings.
type CPUDelta struct {
	Total uint64
	Idle  uint64
}

// Sub returns c - prev. A counter that went backwards means the source was
// reset, and the whole delta collapses to zero.
func (c CPUTotals) Sub(prev CPUTotals) CPUDelta {
	cur, old := c.fields(), prev.fields()
	for i := range cur {
		if cur[i] < old[i] {
			return CPUDelta{}
		}
	}
	return CPUDelta{
		Total: c.Total() - prev.Total(),
		Idle:  c.IdleTotal() - prev.IdleTotal(),
	}
}

// Percent is the non-idle share of the delta, 0-100.
func (d CPUDelta) Percent() float64 {
	if d.Total == 0 || d.Idle > d.Total {
		return 0
	}
	return float64(d.Total-d.Idle) * 100 / float64(d.Total)
}

// MemorySnapshot captures RAM, swap and CMA usage in bytes.
type MemorySnapshot struct {
	Total     Bytes
	Used      Bytes
	SwapTotal Bytes
	SwapUsed  Bytes
	CMATotal  Bytes
	CMAUsed   Bytes
}

// ProcessInfo is one row of the process table.
type ProcessInfo struct {
	PID        int
	Name       string
	CPUPercent float64 // share of the total CPU delta across all cores
	RSS        Bytes
	Threads    int
}

// NetCounters are the cumulative byte counters of one interface.
type NetCounters struct {
	RxBytes uint64
	TxBytes uint64
}

// NetworkSnapshot describes the busiest non-loopback interface.
type NetworkSnapshot struct {
	Interface string
	RxRate    float64 // bytes per second
	TxRate    float64
}

// GPUSnapshot is the merged result of the device probe cascade.
// Usage, VRAM and temperature are independent optionals.
type GPUSnapshot struct {
	Name      string
	Usage     float64
	HasUsage  bool
	VRAMUsed  Bytes
	VRAMTotal Bytes
	HasVRAM   bool
	TempC     float64
	HasTemp   bool
}

// Renderable reports whether any of the optional readings is present.
func (g GPUSnapshot) Renderable() bool { return g.HasUsage || g.HasVRAM || g.HasTemp }

// HostInfo decorates the title line; Known is false when nothing was read.
type HostInfo struct {
	Hostname string
	Uptime   time.Duration
	Load1    float64
	Load5    float64
	Load15   float64
	Known    bool
}

// Sample is the full snapshot exchanged between sampler and UI.
type Sample struct {
	Timestamp  time.Time
	CPUPercent float64
	CPUCount   int
	CPUFreqMHz float64
	CPUTempC   float64
	Memory     MemorySnapshot
	Network    NetworkSnapshot
	GPU        GPUSnapshot
	Host       HostInfo
	Processes  []ProcessInfo
}

// Zero returns an empty sample for initialization.
func Zero() Sample {
	return Sample{
		Timestamp: time.Now(),
		CPUCount:  1,
		CPUTempC:  NoTemperature,
		Network:   NetworkSnapshot{Interface: "-"},
		GPU:       GPUSnapshot{Name: "GPU"},
	}
}
