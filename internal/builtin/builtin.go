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

// Package builtin is the built-in dispatcher of SPEC_FULL.md §4.6 and
// §6: quit, cd, jobs, fg, bg, and kill, each run in the shell process
// rather than a subprocess. Each is registered into a static table the
// way command.c's builtins array does, built here with an
// init()-populated slice in the style of the teacher's CLI command
// registration (AddCommand).
package builtin

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gosh-shell/gosh/internal/job"
)

// Run executes a built-in with the given arguments (argv without the
// command name) and returns its exit code.
type Run func(t *job.Table, args []string) int

type entry struct {
	name string
	run  Run
}

var registry []entry

func register(name string, run Run) {
	registry = append(registry, entry{name: name, run: run})
}

// Lookup returns the built-in named name, or nil if there is none.
func Lookup(name string) Run {
	for _, e := range registry {
		if e.name == name {
			return e.run
		}
	}
	return nil
}

func init() {
	register("quit", doQuit)
	register("cd", doChdir)
	register("jobs", doJobs)
	register("fg", doFg)
	register("bg", doBg)
	register("kill", doKill)
}

func doQuit(t *job.Table, args []string) int {
	t.Shutdown()
	os.Exit(0)
	panic("unreachable")
}

// doChdir implements `cd [path]`: change to path, or $HOME if none given.
func doChdir(t *job.Table, args []string) int {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else {
		path = os.Getenv("HOME")
	}
	if err := os.Chdir(path); err != nil {
		fmt.Fprintf(os.Stderr, "cd: %s: %s\n", err, path)
		return 1
	}
	return 0
}

func doJobs(t *job.Table, args []string) int {
	t.Watch(job.WatchAll)
	return 0
}

// jobArg parses the optional job-number argument the way C's atoi
// does: a non-numeric argument parses as 0, which is always an invalid
// target (slot 0 is the reserved foreground slot and is free at every
// prompt), so it naturally falls through to "job not found" without
// special-casing malformed input.
func jobArg(args []string) int {
	if len(args) == 0 {
		return -1
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0
	}
	return n
}

func doFg(t *job.Table, args []string) int {
	status, err := t.Fg(jobArg(args))
	if err != nil {
		fmt.Fprintln(os.Stderr, "fg: job not found")
		return 0
	}
	return status
}

func doBg(t *job.Table, args []string) int {
	if err := t.Bg(jobArg(args)); err != nil {
		fmt.Fprintln(os.Stderr, "bg: job not found")
	}
	return 0
}

// doKill implements `kill %n`; the '%' sigil is required exactly as in
// command.c's do_kill.
func doKill(t *job.Table, args []string) int {
	if len(args) == 0 || len(args[0]) == 0 || args[0][0] != '%' {
		return -1
	}
	n, err := strconv.Atoi(args[0][1:])
	if err != nil {
		n = 0
	}
	if err := t.Kill(n); err != nil {
		fmt.Fprintln(os.Stderr, "kill: job not found")
	}
	return 0
}
