// Package term owns the controlling terminal: line discipline, alternate
// screen, non-blocking input and key decoding.
package term

import "strconv"

// VT100/xterm control sequences written by the dashboard.
const (
	EnterAltScreen = "\x1b[?1049h"
	LeaveAltScreen = "\x1b[?1049l"
	HideCursor     = "\x1b[?25l"
	ShowCursor     = "\x1b[?25h"
	ClearScreen    = "\x1b[2J"
	Home           = "\x1b[H"
	EraseLine      = "\x1b[K"
	EraseBelow     = "\x1b[J"
	Reverse        = "\x1b[7m"
	Reset          = "\x1b[0m"
)

// Goto moves the cursor to the 1-based row and column.
func Goto(row, col int) string {
	return "\x1b[" + strconv.Itoa(row) + ";" + strconv.Itoa(col) + "H"
}
