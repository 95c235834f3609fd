package procfs

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/net"

	"github.com/utop-dev/utop/internal/model"
)

// NetDev is one interface row of /proc/net/dev.
type NetDev struct {
	Name     string
	Counters model.NetCounters
}

// ReadNetDev returns the per-interface byte counters of net/dev under the
// proc root, in file order, without the loopback interface.
func (fs FS) ReadNetDev(ctx context.Context) ([]NetDev, error) {
	stats, err := net.IOCountersWithContext(fs.PsutilContext(ctx), true)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fs.ProcPath("net", "dev"), err)
	}
	out := make([]NetDev, 0, len(stats))
	for _, st := range stats {
		if st.Name == "lo" {
			continue
		}
		out = append(out, NetDev{
			Name:     st.Name,
			Counters: model.NetCounters{RxBytes: st.BytesRecv, TxBytes: st.BytesSent},
		})
	}
	return out, nil
}
