package gpu

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/procfs"
)

// DefaultNvidiaSMI is where the driver package installs the CLI.
const DefaultNvidiaSMI = "/usr/bin/nvidia-smi"

var nvidiaArgs = []string{
	"--query-gpu=utilization.gpu,memory.used,memory.total,temperature.gpu",
	"--format=csv,noheader,nounits",
}

// Nvidia queries nvidia-smi for the first GPU.
type Nvidia struct {
	Path    string
	Timeout time.Duration
	Runner  CommandRunner
}

func (n *Nvidia) Name() string { return "nvidia" }

func (n *Nvidia) Probe(ctx context.Context, _ model.MemorySnapshot) (model.GPUSnapshot, error) {
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}
	out, err := n.Runner.Output(ctx, n.Path, nvidiaArgs...)
	if ctx.Err() == context.DeadlineExceeded {
		return model.GPUSnapshot{}, fmt.Errorf("%w: nvidia-smi timed out", ErrProbeUnavailable)
	}
	if err != nil {
		return model.GPUSnapshot{}, fmt.Errorf("%w: %v", ErrProbeUnavailable, err)
	}
	return parseNvidiaSMI(out)
}

// parseNvidiaSMI reads the first CSV row: usage %, used MiB, total MiB, °C.
func parseNvidiaSMI(out []byte) (model.GPUSnapshot, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	if !sc.Scan() {
		return model.GPUSnapshot{}, ErrNoUsage
	}
	parts := strings.Split(sc.Text(), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	field := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	var g model.GPUSnapshot
	if v, ok := procfs.ParseLeadingFloat(field(0)); ok {
		g.Usage, g.HasUsage = v, true
	}
	used, errUsed := strconv.ParseUint(field(1), 10, 64)
	total, errTotal := strconv.ParseUint(field(2), 10, 64)
	if errUsed == nil && errTotal == nil {
		g.VRAMUsed = model.Bytes(used * model.MiB)
		g.VRAMTotal = model.Bytes(total * model.MiB)
		g.HasVRAM = true
	}
	if v, ok := procfs.ParseLeadingFloat(field(3)); ok {
		g.TempC, g.HasTemp = v, true
	}
	if !g.HasUsage {
		return g, ErrNoUsage
	}
	g.Name = "NVIDIA GPU"
	return g, nil
}
