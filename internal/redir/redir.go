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

// Package redir is the redirection resolver of SPEC_FULL.md §4.1: it
// consumes a token slice, opens the files named by '<'/'>' operators,
// and returns the compacted word-only slice plus the two descriptors.
package redir

import (
	"fmt"
	"os"

	"github.com/gosh-shell/gosh/internal/token"
)

// FDs holds the input/output descriptors produced (or passed through)
// by Resolve. A zero value means "unset": inherit from the caller.
type FDs struct {
	Stdin  *os.File
	Stdout *os.File
}

// Error is returned when a redirection target cannot be opened. It
// carries the offending path so callers can format the §7 user-error
// message without re-parsing the reason.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot open %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FileMode is the mode used to create '>' redirection targets. It is
// overridden at startup from the optional config file (SPEC_FULL.md
// §6 addition); 0644 is the default specified in spec.md §4.1.
var FileMode os.FileMode = 0644

// Resolve walks tokens left to right per spec.md §4.1: a '<' token
// sets pending-mode to input, '>' sets it to output, and the next
// token in either mode is a filename (the previous descriptor of that
// direction, if any, is closed first). Word tokens outside a pending
// mode are written back into the returned slice, compacting it. fds
// is mutated in place so a caller can pre-seed it (e.g. with an
// already-open pipe end for a non-first pipeline stage) and have a
// later redirection in the same stage override it.
func Resolve(tokens []token.Token, fds *FDs) ([]token.Token, error) {
	out := tokens[:0:0] // fresh backing array; tokens may still be read below
	pending := token.Kind(-1)

	for _, tok := range tokens {
		switch {
		case pending == -1 && tok.Kind == token.Less:
			pending = token.Less
		case pending == -1 && tok.Kind == token.Great:
			pending = token.Great
		case pending != -1:
			path := tok.Text
			if pending == token.Less {
				if fds.Stdin != nil {
					fds.Stdin.Close()
					fds.Stdin = nil
				}
				f, err := os.OpenFile(path, os.O_RDONLY, 0)
				if err != nil {
					return nil, &Error{Path: path, Err: err}
				}
				fds.Stdin = f
			} else {
				if fds.Stdout != nil {
					fds.Stdout.Close()
					fds.Stdout = nil
				}
				f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
				if err != nil {
					return nil, &Error{Path: path, Err: err}
				}
				fds.Stdout = f
			}
			pending = -1
		default:
			out = append(out, tok)
		}
	}

	return out, nil
}
