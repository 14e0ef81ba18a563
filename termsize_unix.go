//go:build unix || darwin

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// getTermColumns returns the width of the controlling terminal in cells.
func getTermColumns() (int, error) {
	f, err := os.OpenFile("/dev/tty", unix.O_NOCTTY|unix.O_CLOEXEC|unix.O_NDELAY|unix.O_RDWR, 0o666)
	if err != nil {
		return 0, err
	}

	defer f.Close()

	sz, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0, err
	}

	return int(sz.Col), nil
}
