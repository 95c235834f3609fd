package procfs

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/utop-dev/utop/internal/model"
)

// ReadCPUTotals parses the aggregate "cpu" line, which the kernel prints
// first in /proc/stat. Missing trailing columns read as zero.
func (fs FS) ReadCPUTotals() (model.CPUTotals, error) {
	path := fs.ProcPath("stat")
	line, err := fs.ReadFirstLine(path)
	if err != nil {
		return model.CPUTotals{}, fmt.Errorf("reading %s: %w", path, err)
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "cpu" {
		return model.CPUTotals{}, ErrNoCPULine
	}

	var vals [8]uint64
	for i := 0; i < len(vals) && i+1 < len(fields); i++ {
		v, err := strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return model.CPUTotals{}, fmt.Errorf("parsing cpu field %d: %w", i, err)
		}
		vals[i] = v
	}
	return model.CPUTotals{
		User:    vals[0],
		Nice:    vals[1],
		System:  vals[2],
		Idle:    vals[3],
		IOWait:  vals[4],
		IRQ:     vals[5],
		SoftIRQ: vals[6],
		Steal:   vals[7],
	}, nil
}

// ReadCPUCount counts the per-core "cpuN" lines of /proc/stat, never less than one.
func (fs FS) ReadCPUCount() int {
	f, err := os.Open(fs.ProcPath("stat"))
	if err != nil {
		return 1
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "cpu") && len(line) > 3 && line[3] >= '0' && line[3] <= '9' {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// ReadCPUFreq returns the mean core frequency in MHz. /proc/cpuinfo is
// preferred; cpufreq's scaling_cur_freq (kHz) is the fallback.
func (fs FS) ReadCPUFreq() (float64, error) {
	if mhz, ok := fs.cpuinfoFreq(); ok {
		return mhz, nil
	}

	root := fs.SysPath("devices", "system", "cpu")
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, ErrNoSensor
	}
	var total float64
	var count int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "cpu") || !startsWithDigit(name[3:]) {
			continue
		}
		khz, err := fs.ReadFloat(fs.SysPath("devices", "system", "cpu", name, "cpufreq", "scaling_cur_freq"))
		if err != nil {
			continue
		}
		total += khz / 1000
		count++
	}
	if count == 0 {
		return 0, ErrNoSensor
	}
	return total / float64(count), nil
}

func (fs FS) cpuinfoFreq() (float64, bool) {
	f, err := os.Open(fs.ProcPath("cpuinfo"))
	if err != nil {
		return 0, false
	}
	defer f.Close()

	var total float64
	var count int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "cpu MHz") {
			continue
		}
		_, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if v, ok := ParseLeadingFloat(value); ok {
			total += v
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return total / float64(count), true
}
