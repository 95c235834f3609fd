package ui

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/term"
)

const controlsHelp = "Controls: q:quit, j/k/arrows:move, h/l/arrows:sort, /:filter"

// View renders dashboard frames. It is not safe for concurrent use.
type View struct {
	selected lipgloss.Style
	width    *runewidth.Condition
	clean    transform.Transformer
}

// NewView pins styling to plain ANSI so frames are byte-for-byte stable
// regardless of the terminal's advertised colour support.
func NewView() *View {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.ANSI)
	return &View{
		selected: r.NewStyle().Reverse(true),
		width:    &runewidth.Condition{StrictEmojiNeutral: true},
		clean:    transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
	}
}

// Render draws one full frame for a cols x rows window. It clamps
// m.Selection to the process list.
func (v *View) Render(s model.Sample, m *Model, cols, rows int) string {
	l := ComputeLayout(cols, rows, len(s.Processes), m.Selection)
	m.Selection = l.Selection

	var b strings.Builder
	b.WriteString(term.Home)
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString(term.EraseLine + "\n")
	}

	line("%s    CPUs: %d", title(s.Host), s.CPUCount)
	line("CPU: %5.1f%%%s%s", s.CPUPercent, freqSuffix(s.CPUFreqMHz), tempSuffix(s.CPUTempC, s.CPUTempC > model.NoTemperature))

	mem := s.Memory
	line("MEM: %s", usage(mem.Used, mem.Total))
	if mem.SwapTotal > 0 {
		line("SWP: %s", usage(mem.SwapUsed, mem.SwapTotal))
	} else {
		line("")
	}
	if mem.CMATotal > 0 {
		line("CMA: %s", usage(mem.CMAUsed, mem.CMATotal))
	}

	line("%s", gpuLine(s.GPU))
	line("NET: %s  rx %s/s  tx %s/s", s.Network.Interface,
		model.Rate(s.Network.RxRate).Humanized(), model.Rate(s.Network.TxRate).Humanized())

	mode := "NORMAL"
	if m.Searching {
		mode = "SEARCHING"
	}
	line("%s [%s]", controlsHelp, mode)
	switch {
	case m.Searching:
		line("Filter: /%s_", m.Filter)
	case m.Filter != "":
		line("Filter: %s (press / to edit)", m.Filter)
	default:
		line("")
	}
	line("")

	cpuHdr, memHdr := "CPU%", "MEM"
	if m.Sort == model.SortMem {
		memHdr += "▼"
	} else {
		cpuHdr += "▼"
	}
	line("%s %s %s %s %*s",
		v.width.FillRight("PID", pidWidth),
		v.width.FillRight("NAME", l.NameWidth),
		v.width.FillLeft(cpuHdr, cpuWidth),
		v.width.FillLeft(memHdr, memWidth),
		thrWidth, "THR")
	line("%s", strings.Repeat("-", l.RuleWidth()))

	for i := l.ScrollTop; i < l.End(); i++ {
		p := s.Processes[i]
		row := fmt.Sprintf("%-*d %s %*.1f %*s %*d",
			pidWidth, p.PID,
			v.nameCell(p.Name, l.NameWidth),
			cpuWidth, p.CPUPercent,
			memWidth, p.RSS.Humanized(),
			thrWidth, p.Threads)
		if i == l.Selection {
			b.WriteString(v.selected.Render(row))
		} else {
			b.WriteString(row + term.Reset)
		}
		b.WriteString(term.EraseLine + "\n")
	}
	b.WriteString(term.EraseBelow)

	if l.Count > 0 {
		fmt.Fprintf(&b, "%sShowing %d-%d of %d%s", term.Goto(rows, 1), l.ScrollTop+1, l.End(), l.Count, term.EraseLine)
	}
	return b.String()
}

// nameCell strips combining marks, then truncates and pads to width cells.
func (v *View) nameCell(name string, width int) string {
	if cleaned, _, err := transform.String(v.clean, name); err == nil {
		name = cleaned
	}
	return v.width.FillRight(v.width.Truncate(name, width, ""), width)
}

func usage(used, total model.Bytes) string {
	return fmt.Sprintf("%5.1f%% %s / %s", model.Percent(used, total), used.Humanized(), total.Humanized())
}

func gpuLine(g model.GPUSnapshot) string {
	if !g.Renderable() {
		return "GPU:"
	}
	var pct, vram string
	if g.HasUsage {
		pct = fmt.Sprintf("%5.1f%%", g.Usage)
	}
	if g.HasVRAM {
		vram = "  VRAM: " + usage(g.VRAMUsed, g.VRAMTotal)
	}
	return fmt.Sprintf("%s: %s%s%s", g.Name, pct, tempSuffix(g.TempC, g.HasTemp), vram)
}

func freqSuffix(mhz float64) string {
	if mhz <= 0 {
		return ""
	}
	return fmt.Sprintf(" @ %.2f GHz", mhz/1000)
}

func tempSuffix(c float64, ok bool) string {
	if !ok {
		return ""
	}
	return fmt.Sprintf(" %.1f°C", c)
}

func title(h model.HostInfo) string {
	if !h.Known {
		return "utop"
	}
	parts := []string{"utop"}
	if h.Hostname != "" {
		parts = append(parts, h.Hostname)
	}
	if h.Uptime > 0 {
		parts = append(parts, "up "+formatUptime(h.Uptime))
	}
	parts = append(parts, fmt.Sprintf("load %.2f %.2f %.2f", h.Load1, h.Load5, h.Load15))
	return strings.Join(parts, "  ")
}

// formatUptime renders "3d 04:05" or "04:05" (hours:minutes).
func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Minute)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hm := fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
	if days > 0 {
		return fmt.Sprintf("%dd %s", int(days), hm)
	}
	return hm
}
