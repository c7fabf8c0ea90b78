package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/tmilner/posh/internal/shellstate"
	"github.com/tmilner/posh/pkg/ast"
)

// execContext bundles the shell's persistent ExecutionContext with the
// per-command-line flags a builtin can set: exitRequested lets the
// exit builtin unwind the driver loop instead of calling os.Exit
// directly, keeping Execute a pure tree walk.
type execContext struct {
	state         *shellstate.ExecutionContext
	exitRequested bool
	exitCode      int

	// Interactive gates terminal hand-off: a foreground pipeline claims
	// the controlling terminal only when the shell itself owns one.
	Interactive bool
}

func newExecContext(state *shellstate.ExecutionContext) *execContext {
	return &execContext{state: state}
}

// environ is the environment external children inherit. Shell
// variables are process-local and not exported into it, matching the
// original's variables map having no effect on spawned processes.
func (c *execContext) environ() []string {
	return os.Environ()
}

// Execute walks a Command tree, running Simple nodes as either
// built-ins or child processes and composing the rest from their
// results. It returns the exit status of the last command run.
func Execute(cmd ast.Command, ctx *execContext, env *IOEnv) (int, error) {
	switch c := cmd.(type) {
	case *ast.Simple, *ast.Redirect, *ast.Pipe:
		return runPipeline(flattenPipe(cmd), ctx, env)

	case *ast.Sequence:
		if _, err := Execute(c.First, ctx, env); err != nil {
			fmt.Fprintln(env.Stderr, err)
		}
		if ctx.exitRequested {
			return ctx.exitCode, nil
		}
		return Execute(c.Second, ctx, env)

	case *ast.Conditional:
		status, err := Execute(c.Left, ctx, env)
		if err != nil {
			fmt.Fprintln(env.Stderr, err)
		}
		if ctx.exitRequested {
			return status, nil
		}
		runRight := (c.Op == ast.And && status == 0) || (c.Op == ast.Or && status != 0)
		if !runRight {
			return status, nil
		}
		return Execute(c.Right, ctx, env)

	case *ast.Background:
		return executeBackground(c, ctx, env)

	default:
		return -1, fmt.Errorf("unknown command node %T", cmd)
	}
}

// executeBackground starts c.Child asynchronously and registers it in
// the job table, announcing the launch immediately and returning status
// 0 without waiting, per the rule that & never blocks the driver loop.
//
// A pipeline of entirely external commands backgrounds in-process via
// startPipelineBackground, since every stage is a real OS process with
// nothing in the shell's own state to race against. Anything else —
// a Sequence/Conditional compound, or a pipeline with a builtin stage
// such as `cd /tmp &` — backgrounds as a real subprocess instead
// (executeBackgroundSubshell): spec.md §5 requires every mutation of
// ExecutionContext to happen on the shell's single thread, but a
// builtin like cd or exit running on a background goroutine against
// the live, shared execContext would mutate ctx.exitRequested/exitCode
// (and, for cd, the process's real working directory) concurrently
// with the foreground driver loop. Re-executing the reconstructed
// command line in a fresh posh process gives that compound command its
// own process, exactly the isolation a forked subshell gives a real
// POSIX shell's backgrounded compound list.
func executeBackground(c *ast.Background, ctx *execContext, env *IOEnv) (int, error) {
	if stages, ok := flattenableToPipeline(c.Child); ok && allExternal(stages) {
		pgid, wait, err := startPipelineBackground(stages, ctx, env)
		if err != nil {
			return -1, err
		}
		job := ctx.state.Jobs.Add(pgid, c.Child.String())
		fmt.Fprintln(env.Stdout, job.LaunchNotice())
		ctx.state.Background.Go(func() error {
			status := wait()
			ctx.state.Jobs.MarkDone(job.ID, status)
			return nil
		})
		return 0, nil
	}
	return executeBackgroundSubshell(c, ctx, env)
}

// executeBackgroundSubshell runs c.Child in a freshly started posh
// process (re-exec'd with -c and the reconstructed command text)
// rather than a goroutine sharing ctx, giving it a real pid to track
// and announce and a private process image no foreground command can
// race against.
func executeBackgroundSubshell(c *ast.Background, ctx *execContext, env *IOEnv) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	cmd := exec.Command(exe, "-c", c.Child.String())
	cmd.Stdin = devNullReader{}
	cmd.Stdout = env.Stdout
	cmd.Stderr = env.Stderr
	cmd.Env = ctx.environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return -1, &ExecError{Kind: ErrForkFailed, Err: err}
	}

	pgid := cmd.Process.Pid
	job := ctx.state.Jobs.Add(pgid, c.Child.String())
	fmt.Fprintln(env.Stdout, job.LaunchNotice())
	ctx.state.Background.Go(func() error {
		waitErr := cmd.Wait()
		ctx.state.Jobs.MarkDone(job.ID, exitStatusFrom(cmd, waitErr))
		return nil
	})
	return 0, nil
}

// flattenableToPipeline reports whether cmd is a Simple/Redirect/Pipe
// tree runPipeline can execute directly.
func flattenableToPipeline(cmd ast.Command) ([]stage, bool) {
	switch cmd.(type) {
	case *ast.Simple, *ast.Redirect, *ast.Pipe:
		return flattenPipe(cmd), true
	default:
		return nil, false
	}
}

// allExternal reports whether every stage names an external command,
// i.e. none of them would need to run a builtin on a goroutine sharing
// the live execContext.
func allExternal(stages []stage) bool {
	for _, st := range stages {
		if _, isBuiltin := lookupBuiltin(simpleCommandName(st.cmd)); isBuiltin {
			return false
		}
	}
	return true
}

// simpleCommandName peels any Redirect wrapper off a stage to find the
// underlying Simple command's name.
func simpleCommandName(cmd ast.Command) string {
	switch c := cmd.(type) {
	case *ast.Simple:
		return c.Command
	case *ast.Redirect:
		return simpleCommandName(c.Child)
	default:
		return ""
	}
}
