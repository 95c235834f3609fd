package procfs

import "errors"

var (
	// ErrNoCPULine indicates that /proc/stat had no aggregate cpu line.
	ErrNoCPULine = errors.New("procfs: no cpu line")

	// ErrMalformedStat indicates that /proc/<pid>/stat lacked the (comm) field.
	ErrMalformedStat = errors.New("procfs: malformed stat")

	// ErrShortStat indicates that /proc/<pid>/stat had fewer fields than expected.
	ErrShortStat = errors.New("procfs: short stat")

	// ErrNoSensor indicates that no temperature or frequency source was found.
	ErrNoSensor = errors.New("procfs: no sensor")

	// ErrNoValue indicates that a sysfs attribute held no parsable number.
	ErrNoValue = errors.New("procfs: no numeric value")
)
