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

package job

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/gosh-shell/gosh/internal/redir"
	"github.com/gosh-shell/gosh/internal/shlog"
	"github.com/gosh-shell/gosh/internal/token"
)

// ErrEmptyStage is the "malformed pipeline" user error of
// SPEC_FULL.md §7: a stage with no words, e.g. "ls | | wc".
var ErrEmptyStage = fmt.Errorf("command line is not well formed")

// Launch is the pipeline launcher of SPEC_FULL.md §4.2. stages is the
// pipeline already split on '|'; each stage's tokens may still contain
// '<'/'>' redirection operators but no '|' or '&'. It spawns every
// stage as a member of one new process group, registers the group as
// a job, and — if foreground — blocks until the job leaves Running,
// returning its exit status.
func (t *Table) Launch(stages [][]token.Token, background bool) (int, error) {
	if len(stages) == 0 {
		return 0, ErrEmptyStage
	}

	t.mu.Lock()
	// The table lock is held across registration of every stage, the
	// Go realization of SPEC_FULL.md §4.2's "child-status signal
	// blocked from the moment job-table mutation begins until the
	// monitor returns" ordering guarantee.

	var (
		pgid    int
		slot    = -1
		prevIn  *os.File
		failure error
	)

	for i, stageTokens := range stages {
		last := i == len(stages)-1

		fds := redir.FDs{Stdin: prevIn}
		var nextIn, curOut *os.File
		if !last {
			r, w, err := os.Pipe()
			if err != nil {
				failure = fmt.Errorf("cannot create pipe: %w", err)
				break
			}
			nextIn, curOut = r, w
			fds.Stdout = curOut
		}

		words, err := redir.Resolve(stageTokens, &fds)
		if err != nil {
			closeFile(fds.Stdin)
			closeFile(fds.Stdout)
			closeFile(nextIn)
			failure = err
			break
		}
		if len(words) == 0 {
			closeFile(fds.Stdin)
			closeFile(fds.Stdout)
			closeFile(nextIn)
			failure = ErrEmptyStage
			break
		}
		argv := wordStrings(words)

		pid, execErr := t.spawnStage(argv, fds, pgid)

		// The parent never needs these ends past the fork: the pipe
		// read end now lives in the next stage's fds.Stdin and the
		// redirection/pipe-write descriptors were just handed to (and
		// duplicated by) the child.
		closeFile(fds.Stdin)
		closeFile(fds.Stdout)

		if execErr != nil {
			reportExecFailure(argv[0], execErr)
			pid = -1
		}

		if slot == -1 {
			if pid > 0 {
				pgid = pid
			} else {
				// First stage failed to start: still open a job slot
				// so the failure is visible to `jobs`/reap sweep, per
				// command.c's external_command, which always reports
				// through the normal job machinery. There is no real
				// process group, so pgid is a non-zero placeholder
				// that will never be signaled (the job is already
				// Finished once recordStage runs below).
				pgid = -1
			}
			slot = t.addJob(pgid, background)
		}
		t.recordStage(slot, pid, argv)

		prevIn = nextIn
	}

	if failure != nil {
		closeFile(prevIn)
		if slot != -1 {
			t.deleteJob(slot)
		}
		t.mu.Unlock()
		return 0, failure
	}

	if !background {
		status, err := t.monitorLocked()
		t.mu.Unlock()
		return status, err
	}

	job := t.jobs[slot]
	fmt.Fprintf(os.Stderr, "[%d] running '%s'\n", slot, job.Command)
	t.mu.Unlock()
	return 0, nil
}

// recordStage appends a process record, substituting a synthetic
// already-Finished record when the stage never actually started (PATH
// resolution or Start() failed before any process existed to reap).
func (t *Table) recordStage(slot, pid int, argv []string) {
	job := t.jobs[slot]
	if pid > 0 {
		job.Processes = append(job.Processes, &Process{Pid: pid, State: Running})
	} else {
		job.Processes = append(job.Processes, &Process{
			State:      Finished,
			ExitStatus: unix.WaitStatus(127 << 8),
			hasStatus:  true,
		})
		job.recompute()
	}
	if job.Command != "" {
		job.Command += " | "
	}
	job.Command += strings.Join(argv, " ")
}

// spawnStage forks and execs one pipeline stage. pgid is 0 for the
// first stage (the new process becomes its own group leader) and the
// first stage's pid for every later stage.
func (t *Table) spawnStage(argv []string, fds redir.FDs, pgid int) (pid int, err error) {
	path, err := resolvePath(argv[0])
	if err != nil {
		return 0, err
	}

	cmd := &exec.Cmd{
		Path: path,
		Args: argv,
	}
	if fds.Stdin != nil {
		cmd.Stdin = fds.Stdin
	} else {
		cmd.Stdin = os.Stdin
	}
	if fds.Stdout != nil {
		cmd.Stdout = fds.Stdout
	} else {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    pgid,
	}

	// SIGINT is handled (not ignored) by the shell via signal.Notify,
	// so POSIX exec() already resets it to default in the child with
	// no action needed here. SIGTSTP/SIGTTIN/SIGTTOU are *ignored* by
	// the shell (jobs.c Signal(..., SIG_IGN) equivalent) and an
	// ignored disposition survives exec, so it must be reset to
	// default for the child and restored for the shell around the
	// fork+exec performed inside cmd.Start(). See SPEC_FULL.md §4.
	signal.Reset(unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU)
	startErr := cmd.Start()
	signal.Ignore(unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU)
	if startErr != nil {
		return 0, startErr
	}

	pid = cmd.Process.Pid
	// Double-set the process group in the parent too, eliminating the
	// race between this call returning and a later signal/terminal
	// handoff finding the child not yet in the group (SPEC_FULL.md §5).
	if err := unix.Setpgid(pid, firstOr(pgid, pid)); err != nil && err != unix.EACCES && err != unix.ESRCH {
		shlog.Debugf("setpgid(%d, %d): %v", pid, pgid, err)
	}

	// The job table's own reaper (internal/reaper, a single wait4(-1,
	// ...) loop) is this process's sole waiter: os.Process.Wait must
	// never also be called for this pid, or the two would race to
	// reap the same child. Release detaches Cmd's bookkeeping without
	// waiting, per os.Process.Release's doc comment ("only needs to be
	// called if Wait is not").
	cmd.Process.Release()

	return pid, nil
}

func firstOr(pgid, fallback int) int {
	if pgid == 0 {
		return fallback
	}
	return pgid
}

func wordStrings(words []token.Token) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Text
	}
	return out
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}

func reportExecFailure(name string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", name, err)
}
