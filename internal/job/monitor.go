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
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/gosh-shell/gosh/internal/term"
)

// ErrJobNotFound is returned by Fg, Bg, and Kill when the referenced
// slot doesn't name a live job (SPEC_FULL.md §4.6).
var ErrJobNotFound = errors.New("job not found")

// monitorLocked is the foreground monitor of SPEC_FULL.md §4.4. The
// caller must hold t.mu; it is released and reacquired across
// t.cond.Wait() calls, which is the Go realization of the spec's
// "atomically unblock child-status and wait for any signal" primitive
// (SPEC_FULL.md §4 Go-realization notes) — the only busy-wait-free
// suspension point besides the interactive line read.
func (t *Table) monitorLocked() (int, error) {
	job := t.jobs[FG]

	// The first stage never actually started (PATH resolution or
	// Start() failed before forking): there is no process group to hand
	// the terminal to, just report the synthetic exit status already
	// recorded and free the slot, matching external_command's behavior
	// for a pipeline whose first command can't run at all.
	if job.Pgid <= 0 {
		exitStatus := interpretStatus(job.ExitStatus())
		t.deleteJob(FG)
		return exitStatus, nil
	}

	if err := term.SetForeground(t.ttyFd, job.Pgid); err != nil {
		return 0, fmt.Errorf("cannot give terminal to job: %w", err)
	}

	for job.State == Running {
		t.cond.Wait()
		job = t.jobs[FG]
	}

	exitStatus := 0
	if job.State == Stopped {
		if modes, err := term.GetModes(t.ttyFd); err == nil {
			job.TermModes = modes
		}
		newSlot := t.allocJob()
		t.moveJob(FG, newSlot)
	} else {
		exitStatus = interpretStatus(job.ExitStatus())
		t.deleteJob(FG)
	}

	term.SetForeground(t.ttyFd, t.shellPgid)
	term.SetModesNow(t.ttyFd, t.shellModes)

	return exitStatus, nil
}

// interpretStatus converts a finished process's raw wait status into
// a shell exit code: the exit code itself on normal exit, or 128+signal
// on termination by signal, matching common shell convention.
func interpretStatus(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	default:
		return -1
	}
}

// defaultResumeSlotLocked picks the highest-numbered non-Finished
// background slot, matching jobs.c resumejob's "for (j = njobmax - 1;
// j > 0 && jobs[j].state == FINISHED; j--)" default scan. Caller must
// hold t.mu.
func (t *Table) defaultResumeSlotLocked() int {
	for j := len(t.jobs) - 1; j > FG; j-- {
		if !t.jobs[j].free() && t.jobs[j].State != Finished {
			return j
		}
	}
	return -1
}

// Fg implements the `fg [n]` built-in (SPEC_FULL.md §4.6): move job n
// (or the default) to the foreground, continue it, and block until it
// stops or finishes.
func (t *Table) Fg(slot int) (int, error) {
	t.mu.Lock()
	if slot < 0 {
		slot = t.defaultResumeSlotLocked()
	}
	job, ok := t.job(slot)
	if !ok || job.State == Finished {
		t.mu.Unlock()
		return 0, ErrJobNotFound
	}

	job.State = Running
	term.SetModesNow(t.ttyFd, t.shellModes)
	t.moveJob(slot, FG)
	fgJob := t.jobs[FG]
	term.SetForeground(t.ttyFd, fgJob.Pgid)
	unix.Kill(-fgJob.Pgid, unix.SIGCONT)
	// The job number printed is the one the user named (or defaulted
	// to), not FG(0), even though the job now lives at slot 0 — job
	// numbers shown to the user are stable (SPEC_FULL.md §3 invariant 4).
	fmt.Fprintf(os.Stderr, "[%d] continue '%s'\n", slot, fgJob.Command)

	status, err := t.monitorLocked()
	t.mu.Unlock()
	return status, err
}

// Bg implements the `bg [n]` built-in: continue job n (or the
// default) without transferring the terminal.
func (t *Table) Bg(slot int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if slot < 0 {
		slot = t.defaultResumeSlotLocked()
	}
	job, ok := t.job(slot)
	if !ok || job.State == Finished {
		return ErrJobNotFound
	}

	unix.Kill(-job.Pgid, unix.SIGCONT)
	job.State = Running
	fmt.Fprintf(os.Stderr, "[%d] continue '%s'\n", slot, job.Command)
	return nil
}

// Kill implements `kill %n` (SPEC_FULL.md §4.6): terminate job n. If
// it is stopped, it is briefly given the terminal and its saved modes
// so that it actually runs its SIGTERM handler before being continued
// and terminated.
func (t *Table) Kill(slot int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.killLocked(slot)
}

func (t *Table) killLocked(slot int) error {
	job, ok := t.job(slot)
	if !ok || job.State == Finished {
		return ErrJobNotFound
	}

	if job.State == Stopped {
		term.SetForeground(t.ttyFd, job.Pgid)
		term.SetModes(t.ttyFd, job.TermModes)
		unix.Kill(-job.Pgid, unix.SIGTERM)
		unix.Kill(-job.Pgid, unix.SIGCONT)
		term.SetForeground(t.ttyFd, t.shellPgid)
		term.SetModes(t.ttyFd, t.shellModes)
	}
	unix.Kill(-job.Pgid, unix.SIGTERM)
	return nil
}

// Which selects which jobs Watch reports.
type Which int

const (
	// WatchAll reports every non-free slot, used by the `jobs` built-in.
	WatchAll Which = iota
	// WatchFinished reports (and removes) only Finished jobs, used by
	// the post-prompt sweep in spec.md's read-eval loop.
	WatchFinished
)

// Watch reports job state to the controlling terminal per the message
// formats in SPEC_FULL.md §6, and removes any Finished job it reports
// — the "destroyed... by a user-visible query" half of the job
// lifecycle (SPEC_FULL.md §3).
func (t *Table) Watch(which Which) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watchLocked(which)
}

func (t *Table) watchLocked(which Which) {
	for j := BG; j < len(t.jobs); j++ {
		job := t.jobs[j]
		if job.free() {
			continue
		}
		if which == WatchFinished && job.State != Finished {
			continue
		}
		switch job.State {
		case Running:
			fmt.Fprintf(os.Stderr, "[%d] running '%s'\n", j, job.Command)
		case Stopped:
			fmt.Fprintf(os.Stderr, "[%d] suspended '%s'\n", j, job.Command)
		case Finished:
			ws := job.ExitStatus()
			if ws.Signaled() {
				fmt.Fprintf(os.Stderr, "[%d] killed '%s' by signal %d\n", j, job.Command, ws.Signal())
			} else {
				fmt.Fprintf(os.Stderr, "[%d] exited '%s', status=%d\n", j, job.Command, ws.ExitStatus())
			}
			t.deleteJob(j)
		}
	}
}

// Shutdown implements spec.md shell.c's shutdownjobs: terminate every
// live job, wait for each to finish, report them, and close the
// duplicated terminal descriptor.
func (t *Table) Shutdown() {
	t.mu.Lock()
	for j := BG; j < len(t.jobs); j++ {
		job := t.jobs[j]
		if job.free() || job.State == Finished {
			continue
		}
		t.killLocked(j)
		for job.State != Finished {
			t.cond.Wait()
		}
	}
	t.watchLocked(WatchFinished)
	t.mu.Unlock()

	unix.Close(t.ttyFd)
}
