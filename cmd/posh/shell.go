package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/tmilner/posh/internal/shellstate"
	"github.com/tmilner/posh/pkg/parser"
)

// Shell is the interactive or scripted driver loop: reap finished
// background jobs, print a prompt, read a line, lex/parse/execute it,
// and store its exit status, repeating until EOF.
type Shell struct {
	Prompt      string
	ctx         *execContext
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	Interactive bool
	sigCh       chan os.Signal
}

// NewShell creates a Shell bound to the process's own standard
// streams, detecting interactivity the idiomatic way via
// golang.org/x/term rather than probing for /dev/tty.
func NewShell() *Shell {
	state := shellstate.NewContext(syscall.Getpgrp())
	ctx := newExecContext(state)
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	ctx.Interactive = interactive
	// The ignore-set is installed once, unconditionally, at process
	// startup (spec.md §4.5): the shell ignores these five signals for
	// its whole lifetime (§5), whether or not this run ever reaches an
	// interactive prompt.
	sigCh := installSignalIgnores()
	return &Shell{
		Prompt:      "$ ",
		ctx:         ctx,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Interactive: interactive,
		sigCh:       sigCh,
	}
}

// Run starts the driver loop and blocks until EOF or an exit builtin
// requests termination.
func (s *Shell) Run() int {
	scanner := bufio.NewScanner(s.Stdin)
	for {
		s.reapJobs()

		if s.Interactive {
			fmt.Fprint(s.Stdout, s.Prompt)
		}

		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		status, err := s.ExecuteLine(line)
		if err != nil {
			fmt.Fprintf(s.Stderr, "posh: %v\n", err)
		}
		s.ctx.state.LastExitStatus = status

		if s.ctx.exitRequested {
			return s.ctx.exitCode
		}
	}
	return s.ctx.state.LastExitStatus
}

// ExecuteLine lexes, parses, and executes one input line against the
// shell's persistent ExecutionContext.
func (s *Shell) ExecuteLine(line string) (int, error) {
	cmd, err := parser.ParseLine(line)
	if err != nil {
		return 1, err
	}
	if cmd == nil {
		return s.ctx.state.LastExitStatus, nil
	}
	return Execute(cmd, s.ctx, &IOEnv{Stdin: s.Stdin, Stdout: s.Stdout, Stderr: s.Stderr})
}

// reapJobs prints completion notices for background jobs that
// finished since the last prompt, then drops their tombstones.
func (s *Shell) reapJobs() {
	for _, j := range s.ctx.state.Jobs.PendingNotices() {
		fmt.Fprintln(s.Stdout, j.DoneNotice())
	}
	s.ctx.state.Jobs.CleanupReported()
}
