package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/utop-dev/utop/internal/model"
)

// MaxFilterLen bounds the initial filter in bytes.
const MaxFilterLen = 63

// Config carries runtime options for utop.
type Config struct {
	SampleInterval  time.Duration
	RenderInterval  time.Duration
	PollTimeout     time.Duration
	GPUCacheTTL     time.Duration
	GPUProbeTimeout time.Duration
	Sort            string
	Filter          string
	EnableGPU       bool
	NvidiaSMI       string
	ProcRoot        string
	SysRoot         string
	LogFile         string
	LogLevel        string
}

func Default() Config {
	return Config{
		SampleInterval:  500 * time.Millisecond,
		RenderInterval:  16 * time.Millisecond,
		PollTimeout:     10 * time.Millisecond,
		GPUCacheTTL:     800 * time.Millisecond,
		GPUProbeTimeout: 750 * time.Millisecond,
		Sort:            "cpu",
		Filter:          "",
		EnableGPU:       true,
		NvidiaSMI:       "/usr/bin/nvidia-smi",
		ProcRoot:        "/proc",
		SysRoot:         "/sys",
		LogFile:         "",
		LogLevel:        "info",
	}
}

// ApplyEnv overrides cfg from the environment. Call it before BindFlags so
// explicit flags win over the environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("UTOP_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.SampleInterval = parsed
		} else if parsed, err2 := time.ParseDuration(v + "s"); err2 == nil {
			cfg.SampleInterval = parsed
		}
	}
	if v := getenv("UTOP_SORT"); v != "" {
		cfg.Sort = v
	}
	if v := getenv("UTOP_GPU"); v == "0" {
		cfg.EnableGPU = false
	}
	if v := getenv("UTOP_NVIDIA_SMI"); v != "" {
		cfg.NvidiaSMI = v
	}
	if v := getenv("HOST_PROC"); v != "" {
		cfg.ProcRoot = v
	}
	if v := getenv("HOST_SYS"); v != "" {
		cfg.SysRoot = v
	}
	if v := getenv("UTOP_LOG"); v != "" {
		cfg.LogFile = v
	}
}

// BindFlags registers the command-line flags on fs, using cfg's current
// values as defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.DurationVarP(&cfg.SampleInterval, "interval", "i", cfg.SampleInterval, "sampling interval (e.g. 500ms, 1s)")
	fs.DurationVar(&cfg.RenderInterval, "render-interval", cfg.RenderInterval, "minimum time between frames")
	fs.StringVarP(&cfg.Sort, "sort", "s", cfg.Sort, "sort column: cpu|mem")
	fs.StringVarP(&cfg.Filter, "filter", "f", cfg.Filter, "initial process filter (name substring or pid)")
	fs.BoolVar(&cfg.EnableGPU, "gpu", cfg.EnableGPU, "enable GPU sampling")
	fs.StringVar(&cfg.NvidiaSMI, "nvidia-smi", cfg.NvidiaSMI, "path to nvidia-smi (empty disables the NVIDIA probe)")
	fs.StringVar(&cfg.ProcRoot, "proc", cfg.ProcRoot, "procfs mount point")
	fs.StringVar(&cfg.SysRoot, "sys", cfg.SysRoot, "sysfs mount point")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file (default: discard)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
}

// Validate rejects unusable settings and truncates the filter.
func (c *Config) Validate() error {
	var errs []error
	if c.SampleInterval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be > 0, got %s", c.SampleInterval))
	}
	if c.RenderInterval <= 0 {
		errs = append(errs, fmt.Errorf("render interval must be > 0, got %s", c.RenderInterval))
	}
	if _, err := model.ParseSortMode(c.Sort); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.ProcRoot == "" || c.SysRoot == "" {
		errs = append(errs, errors.New("proc and sys roots must not be empty"))
	}
	if len(c.Filter) > MaxFilterLen {
		c.Filter = c.Filter[:MaxFilterLen]
	}
	return errors.Join(errs...)
}

// SortMode returns the parsed sort key, falling back to cpu.
func (c Config) SortMode() model.SortMode {
	m, _ := model.ParseSortMode(c.Sort)
	return m
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return lvl, nil
}
