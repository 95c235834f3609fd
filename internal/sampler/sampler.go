package sampler

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/procfs"
)

// minElapsed floors the time between samples used for rate math.
const minElapsed = time.Millisecond

// GPUProber yields the current GPU snapshot. *gpu.Cascade implements it.
type GPUProber interface {
	Probe(ctx context.Context, mem model.MemorySnapshot) model.GPUSnapshot
}

// Options are the optional collaborators of a Sampler.
type Options struct {
	GPU      GPUProber // nil leaves the GPU unnamed and empty
	Host     HostProbe // nil skips header decoration
	Logger   *slog.Logger
	Now      func() time.Time
	PageSize uint64
}

// Sampler turns cumulative kernel counters into rates by differencing
// successive reads. It owns the previous-value tables and is not safe for
// concurrent use.
type Sampler struct {
	fs       procfs.FS
	gpu      GPUProber
	host     HostProbe
	log      *slog.Logger
	now      func() time.Time
	pageSize uint64
	fold     cases.Caser

	prevCPU    model.CPUTotals
	prevTicks  map[int]uint64
	prevNet    map[string]model.NetCounters
	lastSample time.Time
}

func New(fs procfs.FS, opts Options) *Sampler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PageSize == 0 {
		opts.PageSize = procfs.PageSize()
	}
	return &Sampler{
		fs:         fs,
		gpu:        opts.GPU,
		host:       opts.Host,
		log:        opts.Logger,
		now:        opts.Now,
		pageSize:   opts.PageSize,
		fold:       cases.Fold(),
		prevTicks:  map[int]uint64{},
		prevNet:    map[string]model.NetCounters{},
		lastSample: opts.Now(),
	}
}

// Sample takes one snapshot. It never fails: unreadable sources degrade to
// zero values or sentinels.
func (s *Sampler) Sample(ctx context.Context, mode model.SortMode, filter string) model.Sample {
	now := s.now()
	elapsed := now.Sub(s.lastSample)
	if elapsed < minElapsed {
		elapsed = minElapsed
	}
	s.lastSample = now

	out := model.Zero()
	out.Timestamp = now

	cur, err := s.fs.ReadCPUTotals()
	if err != nil {
		s.log.Debug("read cpu totals", "err", err)
	}
	delta := cur.Sub(s.prevCPU)
	out.CPUPercent = delta.Percent()
	s.prevCPU = cur

	if out.Memory, err = s.fs.ReadMemory(); err != nil {
		s.log.Debug("read memory", "err", err)
	}
	out.Network = s.network(ctx, elapsed)
	if s.gpu != nil {
		out.GPU = s.gpu.Probe(ctx, out.Memory)
	}
	out.CPUCount = s.fs.ReadCPUCount()

	out.Processes = s.processes(delta.Total, filter)
	slices.SortFunc(out.Processes, compareFunc(mode))

	if out.CPUTempC, err = s.fs.ReadCPUTemp(); err != nil {
		out.CPUTempC = model.NoTemperature
	}
	if out.CPUFreqMHz, err = s.fs.ReadCPUFreq(); err != nil {
		out.CPUFreqMHz = 0
	}
	if s.host != nil {
		if out.Host, err = s.host.Host(ctx); err != nil {
			s.log.Debug("read host info", "err", err)
		}
	}
	return out
}

// processes reads every pid, applies the filter and derives CPU shares
// against totalDelta. The tick table is replaced wholesale.
func (s *Sampler) processes(totalDelta uint64, filter string) []model.ProcessInfo {
	pids, err := s.fs.ListPIDs()
	if err != nil {
		s.log.Debug("list pids", "err", err)
	}
	folded := s.fold.String(filter)

	ticks := make(map[int]uint64, len(pids))
	procs := make([]model.ProcessInfo, 0, len(pids))
	for _, pid := range pids {
		st, err := s.fs.ReadProcessStat(pid)
		if err != nil {
			continue // exited or unparsable
		}
		if !s.matchFilter(st.PID, st.Name, folded) {
			continue
		}
		ticks[pid] = st.Ticks

		var pct float64
		if prev, seen := s.prevTicks[pid]; seen && totalDelta > 0 && st.Ticks > prev {
			pct = float64(st.Ticks-prev) * 100 / float64(totalDelta)
		}
		procs = append(procs, model.ProcessInfo{
			PID:        pid,
			Name:       st.Name,
			CPUPercent: pct,
			RSS:        model.Bytes(st.RSSPages * s.pageSize),
			Threads:    st.Threads,
		})
	}
	s.prevTicks = ticks
	return procs
}

// matchFilter reports whether folded (already case-folded) is a substring
// of the folded name or of the decimal pid. An empty filter matches all.
func (s *Sampler) matchFilter(pid int, name, folded string) bool {
	if folded == "" {
		return true
	}
	return strings.Contains(s.fold.String(name), folded) ||
		strings.Contains(strconv.Itoa(pid), folded)
}

// compareFunc orders by the selected metric descending, then the other
// metric descending, then pid ascending.
func compareFunc(mode model.SortMode) func(a, b model.ProcessInfo) int {
	byCPU := func(a, b model.ProcessInfo) int { return cmp.Compare(b.CPUPercent, a.CPUPercent) }
	byMem := func(a, b model.ProcessInfo) int { return cmp.Compare(b.RSS, a.RSS) }
	first, second := byCPU, byMem
	if mode == model.SortMem {
		first, second = byMem, byCPU
	}
	return func(a, b model.ProcessInfo) int {
		if c := first(a, b); c != 0 {
			return c
		}
		if c := second(a, b); c != 0 {
			return c
		}
		return cmp.Compare(a.PID, b.PID)
	}
}
