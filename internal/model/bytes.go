package model

import "fmt"

// Bytes is a byte count.
type Bytes uint64

const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// Humanized formats b with a binary unit: two decimals for GiB, one for
// MiB and KiB, none for plain bytes.
func (b Bytes) Humanized() string {
	v := float64(b)
	switch {
	case b >= GiB:
		return fmt.Sprintf("%.2f GiB", v/GiB)
	case b >= MiB:
		return fmt.Sprintf("%.1f MiB", v/MiB)
	case b >= KiB:
		return fmt.Sprintf("%.1f KiB", v/KiB)
	default:
		return fmt.Sprintf("%d B", uint64(b))
	}
}

// Rate converts a non-negative bytes-per-second value for display.
func Rate(perSec float64) Bytes {
	if perSec <= 0 {
		return 0
	}
	return Bytes(perSec)
}

// Percent returns used/total as 0-100, or 0 when total is zero.
func Percent(used, total Bytes) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) * 100 / float64(total)
}

// SubBytes returns a-b, or 0 when b exceeds a.
func SubBytes(a, b Bytes) Bytes {
	if b > a {
		return 0
	}
	return a - b
}
