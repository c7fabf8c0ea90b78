package main

import (
	"fmt"
	"os"
	"strconv"
)

// builtinFunc is a built-in command implementation. It runs in the
// shell's own process (on a goroutine when part of a pipeline) against
// an explicit IOEnv rather than a forked child, per the rule that
// built-ins never fork.
type builtinFunc func(ctx *execContext, env *IOEnv, args []string) int

var builtins = map[string]builtinFunc{
	"cd":   builtinCd,
	"exit": builtinExit,
	"jobs": builtinJobs,
}

func lookupBuiltin(name string) (builtinFunc, bool) {
	fn, ok := builtins[name]
	return fn, ok
}

// builtinCd changes the shell's working directory. With no argument it
// goes to $HOME; with one argument it goes there; anything else is an
// argument-count error.
func builtinCd(ctx *execContext, env *IOEnv, args []string) int {
	var dir string
	switch len(args) {
	case 0:
		home := os.Getenv("HOME")
		if home == "" {
			fmt.Fprintln(env.Stderr, (&ExecError{Kind: ErrNoHomeDirectory}).Error())
			return 1
		}
		dir = home
	case 1:
		dir = args[0]
	default:
		fmt.Fprintln(env.Stderr, (&ExecError{Kind: ErrInvalidArgs}).Error())
		return 1
	}

	info, err := os.Stat(dir)
	if err != nil {
		fmt.Fprintln(env.Stderr, (&ExecError{Kind: ErrDirectoryNotFound, Path: dir}).Error())
		return 1
	}
	if !info.IsDir() {
		fmt.Fprintln(env.Stderr, (&ExecError{Kind: ErrInvalidPath, Path: dir}).Error())
		return 1
	}
	if err := os.Chdir(dir); err != nil {
		fmt.Fprintf(env.Stderr, "cd: %s: %v\n", dir, err)
		return 1
	}
	return 0
}

// builtinExit requests the driver loop end, with an optional exit code.
func builtinExit(ctx *execContext, env *IOEnv, args []string) int {
	code := ctx.state.LastExitStatus
	if len(args) > 1 {
		fmt.Fprintln(env.Stderr, (&ExecError{Kind: ErrInvalidArgs}).Error())
		return 1
	}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(env.Stderr, "exit: %s: numeric argument required\n", args[0])
			return 1
		}
		code = n
	}
	ctx.exitRequested = true
	ctx.exitCode = code
	return code
}

// builtinJobs lists the shell's tracked background jobs and reports
// the completion of any that finished since the last prompt.
func builtinJobs(ctx *execContext, env *IOEnv, args []string) int {
	for _, j := range ctx.state.Jobs.PendingNotices() {
		fmt.Fprintln(env.Stdout, j.DoneNotice())
	}
	for _, j := range ctx.state.Jobs.All() {
		if !j.Reported {
			fmt.Fprintln(env.Stdout, j.Listing())
		}
	}
	ctx.state.Jobs.CleanupReported()
	return 0
}
