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

// Package job is the job-control engine: the data model of jobs and
// processes (SPEC_FULL.md §3), the reaping state machine (§4.5), the
// foreground/background handoff protocol (§4.4, §4.6), and the
// pipeline launcher (§4.2). This is the core the rest of the module
// (cmd/gosh, internal/builtin) is built around.
package job

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gosh-shell/gosh/internal/term"
)

// State is a process or job's lifecycle state (SPEC_FULL.md §3).
type State int

const (
	Running State = iota
	Stopped
	Finished
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "suspended"
	default:
		return "finished"
	}
}

// FG and BG are the reserved job-table slot conventions from
// SPEC_FULL.md §3: slot 0 is the foreground slot, background numbering
// starts at 1.
const (
	FG = 0
	BG = 1
)

// Process is one OS process belonging to a job (SPEC_FULL.md §3).
type Process struct {
	Pid        int
	State      State
	ExitStatus unix.WaitStatus // meaningful only once State == Finished
	hasStatus  bool
}

// Job is one pipeline: one or more processes sharing a process group
// (SPEC_FULL.md §3).
type Job struct {
	Pgid      int // 0 marks a free slot
	Processes []*Process
	State     State
	Command   string
	TermModes term.Modes
}

func (j *Job) free() bool { return j.Pgid == 0 }

// recompute derives j.State from its processes per the lattice in
// SPEC_FULL.md §3 invariant 3: any RUNNING -> RUNNING; else any
// STOPPED -> STOPPED; else FINISHED.
func (j *Job) recompute() {
	state := Finished
	for _, p := range j.Processes {
		switch p.State {
		case Running:
			j.State = Running
			return
		case Stopped:
			state = Stopped
		}
	}
	j.State = state
}

// ExitStatus returns the exit status of the job's last stage, which is
// the job's exit status per SPEC_FULL.md §3.
func (j *Job) ExitStatus() unix.WaitStatus {
	return j.Processes[len(j.Processes)-1].ExitStatus
}

// Table is the job table: a sparse, index-addressed array of job
// slots (SPEC_FULL.md §3), plus the terminal/ownership state the
// foreground handoff protocol needs. One Table is constructed at
// shell startup and threaded to the launcher and built-ins, per the
// single job-control context value SPEC_FULL.md §9 calls for.
type Table struct {
	mu   sync.Mutex
	cond *sync.Cond
	jobs []*Job

	ttyFd      int
	shellPgid  int
	shellModes term.Modes
}

// NewTable constructs the job table with one free foreground slot, per
// spec.md §3's "initializes the job table with one empty slot".
func NewTable(ttyFd, shellPgid int, shellModes term.Modes) *Table {
	t := &Table{
		jobs:       []*Job{{}},
		ttyFd:      ttyFd,
		shellPgid:  shellPgid,
		shellModes: shellModes,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// allocJob finds the lowest free slot >= BG, growing the table if none
// is free (spec.md jobs.c's allocjob).
func (t *Table) allocJob() int {
	for j := BG; j < len(t.jobs); j++ {
		if t.jobs[j].free() {
			return j
		}
	}
	t.jobs = append(t.jobs, &Job{})
	return len(t.jobs) - 1
}

// addJob registers a new job with the given pgid, returning its slot:
// FG if foreground, otherwise the lowest free background slot. Must be
// called with the table's critical section already held by the caller
// (the launcher), matching spec.md's addjob being called while SIGCHLD
// is blocked.
func (t *Table) addJob(pgid int, background bool) int {
	slot := FG
	if background {
		slot = t.allocJob()
	}
	t.jobs[slot] = &Job{
		Pgid:      pgid,
		State:     Running,
		TermModes: t.shellModes,
	}
	return slot
}

// Lock and Unlock expose the table's critical section to callers
// outside the package. The launcher (Launch) takes the same mutex
// directly to bracket job-table mutation and fork together, matching
// SPEC_FULL.md §4.2's "child-status signal blocked from the moment
// job-table mutation begins until the monitor returns" ordering
// guarantee (realized here as a held mutex instead of a blocked
// signal, see SPEC_FULL.md §4 Go-realization notes).
func (t *Table) Lock()   { t.mu.Lock() }
func (t *Table) Unlock() { t.mu.Unlock() }

// job returns the job at slot without locking; callers must hold the
// table lock.
func (t *Table) job(slot int) (*Job, bool) {
	if slot < 0 || slot >= len(t.jobs) || t.jobs[slot].free() {
		return nil, false
	}
	return t.jobs[slot], true
}

// deleteJob frees slot (spec.md jobs.c's deljob). Caller must hold the lock.
func (t *Table) deleteJob(slot int) {
	t.jobs[slot] = &Job{}
}

// moveJob relocates the job at from into to, leaving from free
// (jobs.c's movejob). Caller must hold the lock.
func (t *Table) moveJob(from, to int) {
	t.jobs[to] = t.jobs[from]
	t.jobs[from] = &Job{}
}

// HandleStatus is the reaper callback (SPEC_FULL.md §4.5): it updates
// the process record matching pid and recomputes that job's aggregate
// state, then wakes anyone waiting on the table's condition variable
// (the foreground monitor's suspension point, §4.4).
func (t *Table) HandleStatus(pid int, ws unix.WaitStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, job := range t.jobs {
		if job.free() {
			continue
		}
		for _, proc := range job.Processes {
			if proc.Pid != pid {
				continue
			}
			switch {
			case ws.Exited() || ws.Signaled():
				proc.State = Finished
				proc.ExitStatus = ws
				proc.hasStatus = true
			case ws.Stopped():
				proc.State = Stopped
			case ws.Continued():
				proc.State = Running
			}
			job.recompute()
			t.cond.Broadcast()
			return
		}
	}
}
