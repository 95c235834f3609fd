package procfs

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/utop-dev/utop/internal/model"
)

// ReadMemory parses /proc/meminfo. Absent keys read as zero, so swap and
// CMA totals stay zero on hosts without them.
func (fs FS) ReadMemory() (model.MemorySnapshot, error) {
	path := fs.ProcPath("meminfo")
	f, err := os.Open(path)
	if err != nil {
		return model.MemorySnapshot{}, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	kb := map[string]uint64{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, rest, found := strings.Cut(sc.Text(), ":")
		if !found {
			continue
		}
		switch key {
		case "MemTotal", "MemAvailable", "SwapTotal", "SwapFree", "CmaTotal", "CmaFree":
		default:
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if v, err := strconv.ParseUint(fields[0], 10, 64); err == nil {
			kb[key] = v
		}
	}
	if err := sc.Err(); err != nil {
		return model.MemorySnapshot{}, fmt.Errorf("scanning %s: %w", path, err)
	}

	b := func(key string) model.Bytes { return model.Bytes(kb[key] * 1024) }
	return model.MemorySnapshot{
		Total:     b("MemTotal"),
		Used:      model.SubBytes(b("MemTotal"), b("MemAvailable")),
		SwapTotal: b("SwapTotal"),
		SwapUsed:  model.SubBytes(b("SwapTotal"), b("SwapFree")),
		CMATotal:  b("CmaTotal"),
		CMAUsed:   model.SubBytes(b("CmaTotal"), b("CmaFree")),
	}, nil
}
