package procfs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/utop-dev/utop/internal/model"
)

var (
	cpuZoneTypes  = []string{"pkg", "cpu", "core", "soc"}
	cpuHwmonNames = []string{"coretemp", "cpu", "k10temp"}
)

// ReadCPUTemp returns the CPU temperature in °C. The first thermal zone whose
// type looks like a CPU wins; otherwise the hottest temp*_input of a CPU
// hwmon device. model.NoTemperature is returned with ErrNoSensor when
// neither exists.
func (fs FS) ReadCPUTemp() (float64, error) {
	if t, ok := fs.thermalZoneTemp(); ok {
		return t, nil
	}
	if t, ok := fs.hwmonTemp(); ok {
		return t, nil
	}
	return model.NoTemperature, ErrNoSensor
}

func (fs FS) thermalZoneTemp() (float64, bool) {
	root := fs.SysPath("class", "thermal")
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, false
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "thermal_zone") {
			continue
		}
		typ, err := fs.ReadString(fs.SysPath("class", "thermal", e.Name(), "type"))
		if err != nil || !containsAny(strings.ToLower(typ), cpuZoneTypes) {
			continue
		}
		milli, err := fs.ReadFloat(fs.SysPath("class", "thermal", e.Name(), "temp"))
		if err != nil {
			continue
		}
		return milli / 1000, true
	}
	return 0, false
}

func (fs FS) hwmonTemp() (float64, bool) {
	root := fs.SysPath("class", "hwmon")
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, false
	}
	for _, e := range entries {
		dir := fs.SysPath("class", "hwmon", e.Name())
		name, err := fs.ReadString(filepath.Join(dir, "name"))
		if err != nil || !containsAny(strings.ToLower(name), cpuHwmonNames) {
			continue
		}
		sensors, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		best, found := model.NoTemperature, false
		for _, s := range sensors {
			n := s.Name()
			if !strings.HasPrefix(n, "temp") || !strings.HasSuffix(n, "_input") {
				continue
			}
			milli, err := fs.ReadFloat(filepath.Join(dir, n))
			if err != nil {
				continue
			}
			if c := milli / 1000; !found || c > best {
				best, found = c, true
			}
		}
		if found {
			return best, true
		}
	}
	return 0, false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
