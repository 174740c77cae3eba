// Copyright (c) 2024 The gosh Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package term wraps the handful of terminal-control primitives the
// job-control engine needs: mode snapshot/restore (data model's
// terminal_modes field) and foreground process-group transfer
// (invariant 5 in SPEC_FULL.md §3).
package term

import (
	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// Modes is a saved terminal-attribute snapshot, meaningful only while a
// job is stopped (SPEC_FULL.md §3, job record's terminal_modes field).
type Modes struct {
	termios unix.Termios
}

// GetModes reads the current terminal attributes of fd.
func GetModes(fd int) (Modes, error) {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return Modes{}, err
	}
	return Modes{termios: *t}, nil
}

// SetModes restores previously saved terminal attributes to fd, flushing
// pending I/O first (TCSAFLUSH), matching jobs.c's Tcsetattr(tty_fd,
// TCSAFLUSH, ...) calls around job resume/terminate.
func SetModes(fd int, m Modes) error {
	t := m.termios
	return termios.Tcsetattr(uintptr(fd), termios.TCSAFLUSH, &t)
}

// SetModesNow is the TCSANOW variant used when simply re-asserting the
// shell's own modes after a foreground job returns control.
func SetModesNow(fd int, m Modes) error {
	t := m.termios
	return termios.Tcsetattr(uintptr(fd), termios.TCSANOW, &t)
}

// IsTerminal reports whether fd refers to a terminal device.
func IsTerminal(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	return err == nil
}

// Foreground returns the process group currently owning the controlling
// terminal on fd.
func Foreground(fd int) (int, error) {
	pgid, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
	if err != nil {
		return 0, err
	}
	return pgid, nil
}

// SetForeground transfers terminal ownership to pgid (SPEC_FULL.md
// invariant 5: exactly one process group owns the terminal at any instant).
func SetForeground(fd int, pgid int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, pgid)
}
