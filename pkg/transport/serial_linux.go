//go:build linux

package transport

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// serialPort is a raw termios serial line on Linux.
type serialPort struct {
	pump
	file *os.File
}

func openSerial(cfg SerialConfig) (Transport, error) {
	f, err := os.OpenFile(cfg.Device, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	if err := configureRaw(int(f.Fd()), cfg.Baud); err != nil {
		f.Close()
		return nil, fmt.Errorf("configure %s: %w", cfg.Device, err)
	}

	s := &serialPort{
		pump: newPump(),
		file: f,
	}
	s.wg.Add(1)
	go s.readFrom(f)
	return s, nil
}

func (s *serialPort) Write(ctx context.Context, p []byte) error {
	if s.closed() {
		return ErrTransportClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		s.file.SetWriteDeadline(deadline)
		defer s.file.SetWriteDeadline(time.Time{})
	}
	if _, err := s.file.Write(p); err != nil {
		if s.closed() {
			return ErrTransportClosed
		}
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func (s *serialPort) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		err = s.file.Close()
		s.wg.Wait()
	})
	return err
}

// configureRaw puts the line into raw 8N1 mode at the given rate.
// VMIN=1/VTIME=0 makes reads block until at least one byte arrives.
func configureRaw(fd, baud int) error {
	speed, err := baudFlag(baud)
	if err != nil {
		return err
	}

	tios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("tcgetattr: %w", err)
	}

	tios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	tios.Oflag &^= unix.OPOST
	tios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS
	tios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	tios.Cflag &^= unix.CBAUD
	tios.Cflag |= speed
	tios.Ispeed = speed
	tios.Ospeed = speed

	tios.Cc[unix.VMIN] = 1
	tios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tios); err != nil {
		return fmt.Errorf("tcsetattr: %w", err)
	}
	return nil
}

func baudFlag(baud int) (uint32, error) {
	switch baud {
	case 1200:
		return unix.B1200, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	}
	return 0, fmt.Errorf("no termios flag for baud %d", baud)
}
