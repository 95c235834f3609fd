package term

import (
	"time"

	"golang.org/x/sys/unix"
	systerm "golang.org/x/term"
)

// sysDevice talks to the real tty.
type sysDevice struct{}

func (sysDevice) IsTerminal(fd int) bool { return systerm.IsTerminal(fd) }

func (sysDevice) GetTermios(fd int) (*unix.Termios, error) {
	return unix.IoctlGetTermios(fd, unix.TCGETS)
}

// SetTermios applies t after draining output and discarding unread input,
// like tcsetattr(TCSAFLUSH).
func (sysDevice) SetTermios(fd int, t *unix.Termios) error {
	return unix.IoctlSetTermios(fd, unix.TCSETSF, t)
}

func (sysDevice) SetNonblock(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}

func (sysDevice) GetSize(fd int) (int, int, error) { return systerm.GetSize(fd) }

func (sysDevice) Poll(fd int, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		return false, err
	}
	if n > 0 && fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 && fds[0].Revents&unix.POLLIN == 0 {
		return false, ErrHangup
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}

func (sysDevice) Read(fd int, p []byte) (int, error) { return unix.Read(fd, p) }
