package gpu

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// maxQueues bounds the V3D queue table; the engine exposes a handful.
const maxQueues = 16

type queueStat struct {
	name   string
	lastTS uint64 // ns
	lastRT uint64 // ns
}

// queueTable remembers the last (timestamp, runtime) pair per V3D queue.
// Queues beyond maxQueues are ignored.
type queueTable struct {
	queues []queueStat
}

// observe records a reading and returns the queue's utilization since the
// previous one. The first sighting of a queue only seeds the table.
func (t *queueTable) observe(name string, ts, rt uint64) (float64, bool) {
	for i := range t.queues {
		q := &t.queues[i]
		if q.name != name {
			continue
		}
		var usage float64
		ok := ts > q.lastTS
		if ok {
			var rtDelta uint64
			if rt > q.lastRT {
				rtDelta = rt - q.lastRT
			}
			usage = float64(rtDelta) * 100 / float64(ts-q.lastTS)
		}
		q.lastTS, q.lastRT = ts, rt
		return usage, ok
	}
	if len(t.queues) < maxQueues {
		t.queues = append(t.queues, queueStat{name: name, lastTS: ts, lastRT: rt})
	}
	return 0, false
}

// len is the number of tracked queues.
func (t *queueTable) len() int { return len(t.queues) }

// readGPUStats consumes a gpu_stats file: a header line, then rows of
// "queue timestamp jobs runtime". The busiest queue sets the usage.
func (t *queueTable) readGPUStats(r io.Reader) (float64, bool) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return 0, false
	}
	var best float64
	var found bool
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 4 {
			continue
		}
		ts, err := strconv.ParseUint(f[1], 10, 64)
		if err != nil {
			continue
		}
		rt, err := strconv.ParseUint(f[3], 10, 64)
		if err != nil {
			continue
		}
		usage, ok := t.observe(f[0], ts, rt)
		if !ok {
			continue
		}
		if !found || usage > best {
			best = usage
		}
		found = true
	}
	return best, found
}
