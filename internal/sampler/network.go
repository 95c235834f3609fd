package sampler

import (
	"context"
	"time"

	"github.com/utop-dev/utop/internal/model"
)

// network picks the interface with the most cumulative traffic and reports
// its rates since the previous sample. Interfaces seen for the first time
// report zero.
func (s *Sampler) network(ctx context.Context, elapsed time.Duration) model.NetworkSnapshot {
	snap := model.NetworkSnapshot{Interface: "-"}
	devs, err := s.fs.ReadNetDev(ctx)
	if err != nil {
		s.log.Debug("read net dev", "err", err)
	}

	secs := elapsed.Seconds()
	cur := make(map[string]model.NetCounters, len(devs))
	var best uint64
	found := false
	for _, d := range devs {
		cur[d.Name] = d.Counters
		prev, ok := s.prevNet[d.Name]
		if !ok {
			prev = d.Counters
		}
		total := d.Counters.RxBytes + d.Counters.TxBytes
		if found && total <= best {
			continue
		}
		best, found = total, true
		snap = model.NetworkSnapshot{
			Interface: d.Name,
			RxRate:    float64(deltaU64(d.Counters.RxBytes, prev.RxBytes)) / secs,
			TxRate:    float64(deltaU64(d.Counters.TxBytes, prev.TxBytes)) / secs,
		}
	}
	s.prevNet = cur
	return snap
}

// deltaU64 is cur-prev, or 0 when the counter went backwards.
func deltaU64(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}
