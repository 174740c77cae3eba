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

// Command gosh is a job-controlling interactive shell (SPEC_FULL.md
// §1): it reads command lines from its controlling terminal, runs them
// as pipelines under full job control, and supports suspending,
// resuming, and backgrounding jobs the way a POSIX shell does.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"

	"github.com/canonical/go-flags"
	"golang.org/x/sys/unix"
	xterm "golang.org/x/term"

	"github.com/gosh-shell/gosh/internal/builtin"
	"github.com/gosh-shell/gosh/internal/config"
	"github.com/gosh-shell/gosh/internal/job"
	"github.com/gosh-shell/gosh/internal/reaper"
	"github.com/gosh-shell/gosh/internal/redir"
	"github.com/gosh-shell/gosh/internal/shlog"
	"github.com/gosh-shell/gosh/internal/term"
	"github.com/gosh-shell/gosh/internal/token"
)

var version = "unreleased"

type options struct {
	RCFile  string `long:"rcfile" description:"path to startup file (default ~/.goshrc.yaml)"`
	Version func() `long:"version" description:"print version and exit"`
}

func main() {
	if err := run(); err != nil {
		shlog.Noticef("%v", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	opts.Version = func() {
		fmt.Println("gosh", version)
		os.Exit(0)
	}
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			// go-flags already wrote the help text for us.
			return nil
		}
		return err
	}

	rcPath := opts.RCFile
	if rcPath == "" {
		var err error
		rcPath, err = config.Path()
		if err != nil {
			return err
		}
	}
	cfg, err := config.Load(rcPath)
	if err != nil {
		return err
	}
	redir.FileMode = cfg.RedirectFileMode

	const ttyPath = "/dev/tty"
	ttyFd, shellPgid, shellModes, err := seizeTerminal(ttyPath)
	if err != nil {
		return err
	}

	table := job.NewTable(ttyFd, shellPgid, shellModes)
	if err := reaper.Start(table.HandleStatus); err != nil {
		return fmt.Errorf("cannot start reaper: %w", err)
	}
	defer reaper.Stop()

	// SIGINT is handled (not ignored): the shell itself must survive an
	// interactive ^C at the prompt even though no foreground job is
	// running to absorb it. SIGTSTP/SIGTTIN/SIGTTOU are ignored for the
	// shell's own process group, matching jobs.c's Signal(..., SIG_IGN)
	// calls at startup; spawnStage resets them around each fork+exec
	// (internal/job/launch.go).
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, unix.SIGINT)
	signal.Ignore(unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU)

	if cfg.Greeting != "" {
		fmt.Fprintln(os.Stderr, cfg.Greeting)
	}

	loop(table, cfg, sigint)
	table.Shutdown()
	return nil
}

// seizeTerminal opens the controlling terminal, makes the shell's
// process group its foreground group if it isn't already, and snapshots
// the terminal's attributes, matching jobs.c's init_shell.
func seizeTerminal(path string) (ttyFd, shellPgid int, shellModes term.Modes, err error) {
	tty, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return 0, 0, term.Modes{}, fmt.Errorf("cannot open controlling terminal: %w", err)
	}
	if !xterm.IsTerminal(int(os.Stdin.Fd())) {
		tty.Close()
		return 0, 0, term.Modes{}, fmt.Errorf("standard input is not a terminal")
	}

	// Duplicate the descriptor so the job table owns one that survives
	// independent of this *os.File's lifetime, and mark it close-on-exec
	// so children never inherit it directly (they get the terminal via
	// process-group ownership, not this fd).
	fd, err := unix.Dup(int(tty.Fd()))
	tty.Close()
	if err != nil {
		return 0, 0, term.Modes{}, fmt.Errorf("cannot duplicate terminal descriptor: %w", err)
	}
	unix.CloseOnExec(fd)

	shellPgid = os.Getpid()
	if err := unix.Setpgid(0, shellPgid); err != nil {
		shlog.Debugf("setpgid(0, %d): %v", shellPgid, err)
	}
	if err := term.SetForeground(fd, shellPgid); err != nil {
		unix.Close(fd)
		return 0, 0, term.Modes{}, fmt.Errorf("cannot seize controlling terminal: %w", err)
	}

	modes, err := term.GetModes(fd)
	if err != nil {
		unix.Close(fd)
		return 0, 0, term.Modes{}, fmt.Errorf("cannot read terminal attributes: %w", err)
	}

	return fd, shellPgid, modes, nil
}

// loop is the read-eval loop of SPEC_FULL.md §1: prompt, read a line,
// tokenize it, dispatch it as either a built-in or a pipeline, then
// sweep and report any job that finished in the background, repeating
// until end-of-input or the `quit` built-in exits the process.
func loop(table *job.Table, cfg config.Config, sigint <-chan os.Signal) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprint(os.Stdout, cfg.Prompt)

		line, err := readLine(reader, sigint)
		if err != nil {
			if err == errInterrupted {
				fmt.Fprintln(os.Stderr)
				continue
			}
			// End of input (Ctrl-D): exit the loop exactly like `quit`,
			// via Shutdown in run(), matching spec.md's EOF handling.
			return
		}

		eval(table, line)
		table.Watch(job.WatchFinished)
	}
}

var errInterrupted = fmt.Errorf("interrupted")

// readLine reads one line from r, returning errInterrupted if SIGINT
// arrives first. Go has no portable way to interrupt a blocked Read, so
// an interrupted line is only detected once something is available to
// read; in the ordinary case SIGINT arrives while the read is blocked
// and is only observed as soon as the user also presses Enter, which
// occurs naturally since ^C on a terminal running in cooked mode also
// delivers the newline written by the driver.
func readLine(r *bufio.Reader, sigint <-chan os.Signal) (string, error) {
	select {
	case <-sigint:
		return "", errInterrupted
	default:
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	select {
	case <-sigint:
		return "", errInterrupted
	default:
	}
	return trimNewline(line), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// eval implements spec.md §1/§7: split the line into '|'-separated
// stages, detect a trailing '&', and either run the first word as a
// built-in or hand the whole pipeline to the job table.
func eval(table *job.Table, line string) {
	tokens := token.Scan(line)
	if len(tokens) == 0 {
		return
	}

	background := false
	if tokens[len(tokens)-1].Kind == token.Amp {
		background = true
		tokens = tokens[:len(tokens)-1]
	}

	stages := splitPipe(tokens)
	// A backgrounded or piped built-in name still goes through the
	// external pipeline path rather than being intercepted here, since
	// there is no such executable on PATH and it will fail exactly the
	// way SPEC_FULL.md's open question about "cd /tmp &" expects.
	if !background && len(stages) == 1 && len(stages[0]) > 0 && stages[0][0].Kind == token.Word {
		if run := builtin.Lookup(stages[0][0].Text); run != nil {
			args := wordsOf(stages[0][1:])
			run(table, args)
			return
		}
	}

	if _, err := table.Launch(stages, background); err != nil {
		fmt.Fprintf(os.Stderr, "gosh: %s\n", err)
	}
}

func splitPipe(tokens []token.Token) [][]token.Token {
	var stages [][]token.Token
	start := 0
	for i, tok := range tokens {
		if tok.Kind == token.Pipe {
			stages = append(stages, tokens[start:i])
			start = i + 1
		}
	}
	stages = append(stages, tokens[start:])
	return stages
}

func wordsOf(tokens []token.Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.Kind == token.Word {
			out = append(out, t.Text)
		}
	}
	return out
}
