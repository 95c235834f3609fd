package procfs

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Indexes into the fields that follow "(comm) " in /proc/<pid>/stat,
// i.e. stat(5) field numbers 14, 15, 20 and 24 minus three.
const (
	statFieldUtime      = 11
	statFieldStime      = 12
	statFieldNumThreads = 17
	statFieldRSS        = 21
	statMinFields       = statFieldRSS + 1
)

// ProcessStat is the subset of /proc/<pid>/stat the sampler needs.
type ProcessStat struct {
	PID      int
	Name     string
	Ticks    uint64 // utime + stime
	Threads  int
	RSSPages uint64
}

// ListPIDs returns the numeric entries of the proc root in directory order.
func (fs FS) ListPIDs() ([]int, error) {
	entries, err := os.ReadDir(fs.ProcRoot)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fs.ProcRoot, err)
	}
	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !startsWithDigit(e.Name()) {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// ReadProcessStat reads /proc/<pid>/stat in one call and parses it.
func (fs FS) ReadProcessStat(pid int) (ProcessStat, error) {
	b, err := os.ReadFile(fs.ProcPath(strconv.Itoa(pid), "stat"))
	if err != nil {
		return ProcessStat{}, err
	}
	return ParseProcessStat(pid, b)
}

// ParseProcessStat parses the contents of a stat file. The command name is
// taken between the first '(' and the last ')' so names containing spaces
// or parentheses survive.
func ParseProcessStat(pid int, b []byte) (ProcessStat, error) {
	open := bytes.IndexByte(b, '(')
	closing := bytes.LastIndexByte(b, ')')
	if open < 0 || closing < open {
		return ProcessStat{}, ErrMalformedStat
	}
	fields := strings.Fields(string(b[closing+1:]))
	if len(fields) < statMinFields {
		return ProcessStat{}, fmt.Errorf("%w: got %d fields, need %d", ErrShortStat, len(fields), statMinFields)
	}

	utime, err := strconv.ParseUint(fields[statFieldUtime], 10, 64)
	if err != nil {
		return ProcessStat{}, fmt.Errorf("parsing utime: %w", err)
	}
	stime, err := strconv.ParseUint(fields[statFieldStime], 10, 64)
	if err != nil {
		return ProcessStat{}, fmt.Errorf("parsing stime: %w", err)
	}
	threads, err := strconv.Atoi(fields[statFieldNumThreads])
	if err != nil {
		return ProcessStat{}, fmt.Errorf("parsing num_threads: %w", err)
	}
	rss, err := strconv.ParseInt(fields[statFieldRSS], 10, 64)
	if err != nil {
		return ProcessStat{}, fmt.Errorf("parsing rss: %w", err)
	}
	if rss < 0 {
		rss = 0
	}

	return ProcessStat{
		PID:      pid,
		Name:     string(b[open+1 : closing]),
		Ticks:    utime + stime,
		Threads:  threads,
		RSSPages: uint64(rss),
	}, nil
}
