package term

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrNotTerminal is returned by Acquire when stdin is not a tty.
	ErrNotTerminal = errors.New("term: stdin is not a terminal")

	// ErrHangup is returned by Poll once the input side has gone away.
	ErrHangup = errors.New("term: input hung up")
)

// readChunk is the size of a single input read.
const readChunk = 16

// Fallback size when the window size cannot be queried.
const (
	defaultCols = 80
	defaultRows = 24
)

// device is the kernel surface a Terminal drives.
type device interface {
	IsTerminal(fd int) bool
	GetTermios(fd int) (*unix.Termios, error)
	SetTermios(fd int, t *unix.Termios) error
	SetNonblock(fd int, nonblocking bool) error
	GetSize(fd int) (cols, rows int, err error)
	Poll(fd int, timeout time.Duration) (bool, error)
	Read(fd int, p []byte) (int, error)
}

// Terminal is the acquired controlling terminal. Release must be called on
// every exit path; it is safe to call more than once.
type Terminal struct {
	dev    device
	in     int
	out    int
	w      io.Writer
	log    *slog.Logger
	saved  unix.Termios
	active bool
}

// Acquire switches in to unbuffered, non-echoing, non-blocking input with
// signal keys disabled, and out to the alternate screen with a hidden
// cursor.
func Acquire(in, out *os.File, logger *slog.Logger) (*Terminal, error) {
	return acquire(sysDevice{}, int(in.Fd()), int(out.Fd()), out, logger)
}

func acquire(dev device, in, out int, w io.Writer, logger *slog.Logger) (*Terminal, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !dev.IsTerminal(in) {
		return nil, ErrNotTerminal
	}
	saved, err := dev.GetTermios(in)
	if err != nil {
		return nil, fmt.Errorf("term: reading line discipline: %w", err)
	}

	raw := *saved
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG
	if err := dev.SetTermios(in, &raw); err != nil {
		return nil, fmt.Errorf("term: setting line discipline: %w", err)
	}
	t := &Terminal{dev: dev, in: in, out: out, w: w, log: logger, saved: *saved, active: true}
	if err := dev.SetNonblock(in, true); err != nil {
		_ = t.Release()
		return nil, fmt.Errorf("term: setting non-blocking input: %w", err)
	}
	if _, err := io.WriteString(w, EnterAltScreen+ClearScreen+Home+HideCursor); err != nil {
		_ = t.Release()
		return nil, fmt.Errorf("term: entering alternate screen: %w", err)
	}
	logger.Info("terminal acquired", "fd", in)
	return t, nil
}

// Release restores the recorded line discipline, blocking input and the
// primary screen.
func (t *Terminal) Release() error {
	if t == nil || !t.active {
		return nil
	}
	t.active = false

	var errs []error
	saved := t.saved
	if err := t.dev.SetTermios(t.in, &saved); err != nil {
		errs = append(errs, fmt.Errorf("term: restoring line discipline: %w", err))
	}
	if err := t.dev.SetNonblock(t.in, false); err != nil {
		errs = append(errs, fmt.Errorf("term: restoring blocking input: %w", err))
	}
	if _, err := io.WriteString(t.w, LeaveAltScreen+ShowCursor+Reset); err != nil {
		errs = append(errs, fmt.Errorf("term: leaving alternate screen: %w", err))
	}
	err := errors.Join(errs...)
	t.log.Info("terminal released", "err", err)
	return err
}

// Active reports whether the terminal is still acquired.
func (t *Terminal) Active() bool { return t != nil && t.active }

// Poll waits up to timeout for input. An interrupted wait reports false.
func (t *Terminal) Poll(timeout time.Duration) (bool, error) {
	ready, err := t.dev.Poll(t.in, timeout)
	if errors.Is(err, unix.EINTR) {
		return false, nil
	}
	return ready, err
}

// ReadKeys drains pending input and decodes it.
func (t *Terminal) ReadKeys() ([]Key, error) {
	var pending []byte
	buf := make([]byte, readChunk)
	for {
		n, err := t.dev.Read(t.in, buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				break
			}
			return DecodeKeys(pending), err
		}
		if n < readChunk {
			break
		}
	}
	return DecodeKeys(pending), nil
}

// Size returns the window size in cells, falling back to 80x24.
func (t *Terminal) Size() (cols, rows int) {
	cols, rows, err := t.dev.GetSize(t.out)
	if err != nil || cols <= 0 || rows <= 0 {
		return defaultCols, defaultRows
	}
	return cols, rows
}

func (t *Terminal) Write(p []byte) (int, error) {
	return t.w.Write(p)
}
