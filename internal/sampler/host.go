package sampler

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/procfs"
)

// HostProbe supplies the title-line decoration.
type HostProbe interface {
	Host(ctx context.Context) (model.HostInfo, error)
}

// PsutilHost reads hostname, uptime and load averages through gopsutil,
// rooted at FS.
type PsutilHost struct {
	FS procfs.FS
}

func (h PsutilHost) Host(ctx context.Context) (model.HostInfo, error) {
	ctx = h.FS.PsutilContext(ctx)
	var info model.HostInfo
	var errs []error

	if name, err := os.Hostname(); err == nil {
		info.Hostname, info.Known = name, true
	} else {
		errs = append(errs, err)
	}
	if secs, err := host.UptimeWithContext(ctx); err == nil {
		info.Uptime, info.Known = time.Duration(secs)*time.Second, true
	} else {
		errs = append(errs, err)
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		info.Load1, info.Load5, info.Load15, info.Known = avg.Load1, avg.Load5, avg.Load15, true
	} else {
		errs = append(errs, err)
	}
	return info, errors.Join(errs...)
}
