package ui

// Fixed column widths of the process table.
const (
	pidWidth     = 7
	cpuWidth     = 8
	memWidth     = 12
	thrWidth     = 4
	minNameWidth = 12

	// headerRows is the number of rows above and below the table.
	headerRows = 12
)

// Layout is the geometry of one frame.
type Layout struct {
	Cols      int
	Rows      int
	NameWidth int
	Visible   int // process rows that fit
	ScrollTop int // index of the first visible process
	Selection int // clamped to [0, count)
	Count     int
}

// ComputeLayout sizes the NAME column and scrolls the table so the
// selection stays centred where possible.
func ComputeLayout(cols, rows, count, selection int) Layout {
	l := Layout{Cols: cols, Rows: rows, Count: count}

	l.NameWidth = cols - (pidWidth + cpuWidth + memWidth + thrWidth + 5)
	if l.NameWidth < minNameWidth {
		l.NameWidth = minNameWidth
	}
	l.Visible = max(0, rows-headerRows)

	if selection >= count {
		selection = count - 1
	}
	l.Selection = max(0, selection)

	top := l.Selection - l.Visible/2
	if top > count-l.Visible {
		top = count - l.Visible
	}
	l.ScrollTop = max(0, top)
	return l
}

// End is one past the last visible process index.
func (l Layout) End() int {
	return min(l.Count, l.ScrollTop+l.Visible)
}

// RuleWidth is the length of the dashed rule under the column header.
func (l Layout) RuleWidth() int {
	return max(0, min(l.Cols, pidWidth+l.NameWidth+cpuWidth+memWidth+thrWidth+4))
}
