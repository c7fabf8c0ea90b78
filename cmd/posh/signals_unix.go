//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// ignoredSignals are the job-control signals the shell itself must
// never act on: SIGINT/SIGQUIT would kill an interactive shell on
// Ctrl-C, SIGTSTP/SIGTTIN/SIGTTOU would stop it on terminal access.
// POSIX exec() resets a caught-but-not-SIG_IGN'd signal's disposition
// to default in the new process image, so registering them with
// signal.Notify here (rather than signal.Ignore) is enough: child
// processes started afterward see the default disposition without any
// explicit reset in the forked child, unlike the raw sigaction(SIG_DFL)
// call the original implementation needs before execvp.
var ignoredSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGTSTP,
	syscall.SIGTTIN,
	syscall.SIGTTOU,
}

// installSignalIgnores arranges for the shell process to receive, and
// silently discard, the job-control signals above.
func installSignalIgnores() chan os.Signal {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, ignoredSignals...)
	return ch
}

// claimTerminal hands the controlling terminal to pgid, used after
// starting a foreground job so it (not the shell) receives ^C/^Z.
// Interactive-only: non-interactive runs have no controlling terminal
// to hand off and silently no-op.
func claimTerminal(interactive bool, pgid int) {
	if !interactive {
		return
	}
	unix.IoctlSetPointerInt(int(os.Stdin.Fd()), unix.TIOCSPGRP, pgid)
}

// reclaimTerminal hands the controlling terminal back to the shell's
// own process group once a foreground job finishes.
func reclaimTerminal(interactive bool, shellPGID int) {
	if !interactive {
		return
	}
	unix.IoctlSetPointerInt(int(os.Stdin.Fd()), unix.TIOCSPGRP, shellPGID)
}
