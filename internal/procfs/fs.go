// Package procfs reads typed records from the kernel's /proc and /sys
// pseudo-filesystems. Every reader opens its files, parses them and closes
// them again; nothing is cached between calls.
package procfs

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/common"
	"golang.org/x/sys/unix"
)

// FS locates the proc and sys mounts. Tests point it at fixture trees.
type FS struct {
	ProcRoot string
	SysRoot  string
}

// DefaultFS reads the live host.
func DefaultFS() FS { return FS{ProcRoot: "/proc", SysRoot: "/sys"} }

// NewFS substitutes the defaults for empty roots.
func NewFS(procRoot, sysRoot string) FS {
	fs := DefaultFS()
	if procRoot != "" {
		fs.ProcRoot = procRoot
	}
	if sysRoot != "" {
		fs.SysRoot = sysRoot
	}
	return fs
}

// ProcPath joins elem under the proc root.
func (fs FS) ProcPath(elem ...string) string {
	return filepath.Join(append([]string{fs.ProcRoot}, elem...)...)
}

// SysPath joins elem under the sys root.
func (fs FS) SysPath(elem ...string) string {
	return filepath.Join(append([]string{fs.SysRoot}, elem...)...)
}

// PsutilContext points gopsutil readers at the same roots as fs. Without
// it gopsutil falls back to HOST_PROC, HOST_SYS and then the live mounts.
func (fs FS) PsutilContext(ctx context.Context) context.Context {
	env := common.EnvMap{}
	if fs.ProcRoot != "" {
		env[common.HostProcEnvKey] = fs.ProcRoot
	}
	if fs.SysRoot != "" {
		env[common.HostSysEnvKey] = fs.SysRoot
	}
	return context.WithValue(ctx, common.EnvKey, env)
}

// ReadString returns the trimmed contents of path.
func (fs FS) ReadString(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// ReadFirstLine returns the first line of path without its newline.
func (fs FS) ReadFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if sc.Scan() {
		return sc.Text(), nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return "", nil
}

// ReadFloat parses the leading number of path, the way scanf("%lf") would.
func (fs FS) ReadFloat(path string) (float64, error) {
	s, err := fs.ReadString(path)
	if err != nil {
		return 0, err
	}
	v, ok := ParseLeadingFloat(s)
	if !ok {
		return 0, fmt.Errorf("%s: %w", path, ErrNoValue)
	}
	return v, nil
}

// ReadUint parses path as a decimal unsigned integer.
func (fs FS) ReadUint(path string) (uint64, error) {
	s, err := fs.ReadString(path)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%s: %w", path, ErrNoValue)
	}
	v, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, ErrNoValue)
	}
	return v, nil
}

// ParseLeadingFloat parses the longest numeric prefix of s after leading
// blanks. "45%" yields 45 and "abc" yields false.
func ParseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	seenDigit, seenDot, seenExp := false, false, false
scan:
	for end < len(s) {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case (c == '+' || c == '-') && (end == 0 || s[end-1] == 'e' || s[end-1] == 'E'):
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			break scan
		}
		end++
	}
	for ; end > 0; end-- {
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// PageSize returns the memory page size used to scale RSS pages.
func PageSize() uint64 {
	return uint64(unix.Getpagesize())
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
