package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/tmilner/posh/pkg/ast"
)

// stage is one pipeline element: a simple command plus whatever
// redirections were stacked directly on it. flattenPipe never returns
// a stage that is itself a Pipe, since the grammar guarantees
// Pipe.Right (and the tail of a left-leaning Pipe.Left chain) bottoms
// out in Redirect/Simple.
type stage struct {
	cmd ast.Command
}

// flattenPipe walks a left-leaning Pipe tree into an ordered stage
// list: a | b | c, parsed as Pipe{Pipe{a,b},c}, flattens to [a, b, c].
func flattenPipe(cmd ast.Command) []stage {
	pipe, ok := cmd.(*ast.Pipe)
	if !ok {
		return []stage{{cmd: cmd}}
	}
	return append(flattenPipe(pipe.Left), stage{cmd: pipe.Right})
}

// resolveRedirects peels nested Redirect layers off a stage, opening
// each target file and returning the Simple command at the bottom
// together with the IOEnv those redirections produce. Returned files
// must be closed by the caller once the stage's process has started.
func resolveRedirects(cmd ast.Command, env *IOEnv) (*ast.Simple, *IOEnv, []io.Closer, error) {
	switch c := cmd.(type) {
	case *ast.Simple:
		return c, env, nil, nil
	case *ast.Redirect:
		simple, inner, closers, err := resolveRedirects(c.Child, env)
		if err != nil {
			return nil, nil, closers, err
		}
		switch c.Kind_ {
		case ast.RedirIn:
			f, err := os.Open(c.Target)
			if err != nil {
				return nil, nil, closers, &ExecError{Kind: ErrFile, Path: c.Target, Err: err}
			}
			closers = append(closers, f)
			inner = inner.WithStdin(f)
		case ast.RedirOut:
			f, err := os.Create(c.Target)
			if err != nil {
				return nil, nil, closers, &ExecError{Kind: ErrFile, Path: c.Target, Err: err}
			}
			closers = append(closers, f)
			inner = inner.WithStdout(f)
		case ast.RedirAppend:
			f, err := os.OpenFile(c.Target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			if err != nil {
				return nil, nil, closers, &ExecError{Kind: ErrFile, Path: c.Target, Err: err}
			}
			closers = append(closers, f)
			inner = inner.WithStdout(f)
		}
		return simple, inner, closers, nil
	default:
		return nil, nil, nil, fmt.Errorf("pipeline stage is not a simple command: %v", cmd)
	}
}

// runningStage is either a real child process or a builtin running in
// its own goroutine, started but not yet waited on.
type runningStage struct {
	cmd      *exec.Cmd
	closers  []io.Closer
	bnStatus chan int // non-nil for a builtin stage
}

// runPipeline starts every stage of a flattened pipe, wires N-1
// os.Pipe()s between them, and waits for all of them to finish.
// Builtins run inside the shell process on a goroutine bound to the
// stage's IOEnv, grounded on the goroutine+channel pipeline pattern;
// externals are real child processes sharing one process group,
// grounded on the teacher's Pipeline.Run.
func runPipeline(stages []stage, ctx *execContext, env *IOEnv) (int, error) {
	n := len(stages)
	envs := make([]*IOEnv, n)
	for i := range envs {
		envs[i] = env
	}

	pipeWriters := make([]io.Closer, 0, n-1)
	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			return -1, fmt.Errorf("pipe: %w", err)
		}
		envs[i] = envs[i].WithStdout(w)
		envs[i+1] = &IOEnv{Stdin: r, Stdout: env.Stdout, Stderr: env.Stderr}
		pipeWriters = append(pipeWriters, w)
	}

	running := make([]*runningStage, n)
	var pgid int

	for i, st := range stages {
		simple, stageEnv, closers, err := resolveRedirects(st.cmd, envs[i])
		if err != nil {
			closeAll(pipeWriters)
			return -1, err
		}

		if builtin, ok := lookupBuiltin(simple.Command); ok {
			statusCh := make(chan int, 1)
			args := simple.Arguments[1:]
			go func() {
				statusCh <- builtin(ctx, stageEnv, args)
			}()
			running[i] = &runningStage{closers: closers, bnStatus: statusCh}
			continue
		}

		cmd := exec.Command(simple.Command, simple.Arguments[1:]...)
		cmd.Stdin = stageEnv.Stdin
		cmd.Stdout = stageEnv.Stdout
		cmd.Stderr = stageEnv.Stderr
		cmd.Env = ctx.environ()
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		if pgid != 0 {
			cmd.SysProcAttr.Pgid = pgid
			cmd.SysProcAttr.Setpgid = true
		}

		if err := cmd.Start(); err != nil {
			closeAll(pipeWriters)
			closeAll(closers)
			return -1, &ExecError{Kind: ErrCommandNotFound, Path: simple.Command, Err: err}
		}
		if pgid == 0 {
			pgid = cmd.Process.Pid
		}
		running[i] = &runningStage{cmd: cmd, closers: closers}
	}

	for _, w := range pipeWriters {
		w.Close()
	}

	if pgid != 0 {
		claimTerminal(ctx.Interactive, pgid)
	}

	var lastStatus int
	var firstErr error
	for _, rs := range running {
		if rs == nil {
			continue
		}
		if rs.bnStatus != nil {
			lastStatus = <-rs.bnStatus
		} else {
			err := rs.cmd.Wait()
			lastStatus = exitStatusFrom(rs.cmd, err)
			if err != nil {
				if _, ok := err.(*exec.ExitError); !ok && firstErr == nil {
					firstErr = err
				}
			}
		}
		closeAll(rs.closers)
	}

	if pgid != 0 {
		reclaimTerminal(ctx.Interactive, ctx.state.ShellPGID)
	}

	return lastStatus, firstErr
}

// startPipelineBackground starts a flattened pipe without waiting,
// returning the leading process group ID (0 if every stage was a
// builtin) and a function the caller runs in its own goroutine to
// observe completion.
func startPipelineBackground(stages []stage, ctx *execContext, env *IOEnv) (int, func() int, error) {
	// Background jobs run with the shell's own stdin detached, mirroring
	// how an interactive shell disconnects a backgrounded job from the
	// terminal's input.
	bgEnv := env.WithStdin(devNullReader{})

	n := len(stages)
	envs := make([]*IOEnv, n)
	for i := range envs {
		envs[i] = bgEnv
	}
	pipeWriters := make([]io.Closer, 0, n-1)
	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			return 0, nil, fmt.Errorf("pipe: %w", err)
		}
		envs[i] = envs[i].WithStdout(w)
		envs[i+1] = &IOEnv{Stdin: r, Stdout: bgEnv.Stdout, Stderr: bgEnv.Stderr}
		pipeWriters = append(pipeWriters, w)
	}

	running := make([]*runningStage, n)
	var pgid int
	for i, st := range stages {
		simple, stageEnv, closers, err := resolveRedirects(st.cmd, envs[i])
		if err != nil {
			closeAll(pipeWriters)
			return 0, nil, err
		}
		if builtin, ok := lookupBuiltin(simple.Command); ok {
			statusCh := make(chan int, 1)
			args := simple.Arguments[1:]
			go func() {
				statusCh <- builtin(ctx, stageEnv, args)
			}()
			running[i] = &runningStage{closers: closers, bnStatus: statusCh}
			continue
		}
		cmd := exec.Command(simple.Command, simple.Arguments[1:]...)
		cmd.Stdin = stageEnv.Stdin
		cmd.Stdout = stageEnv.Stdout
		cmd.Stderr = stageEnv.Stderr
		cmd.Env = ctx.environ()
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		if pgid != 0 {
			cmd.SysProcAttr.Pgid = pgid
		}
		if err := cmd.Start(); err != nil {
			closeAll(pipeWriters)
			closeAll(closers)
			return 0, nil, &ExecError{Kind: ErrCommandNotFound, Path: simple.Command, Err: err}
		}
		if pgid == 0 {
			pgid = cmd.Process.Pid
		}
		running[i] = &runningStage{cmd: cmd, closers: closers}
	}
	for _, w := range pipeWriters {
		w.Close()
	}

	wait := func() int {
		var last int
		for _, rs := range running {
			if rs == nil {
				continue
			}
			if rs.bnStatus != nil {
				last = <-rs.bnStatus
			} else {
				err := rs.cmd.Wait()
				last = exitStatusFrom(rs.cmd, err)
			}
			closeAll(rs.closers)
		}
		return last
	}
	return pgid, wait, nil
}

func exitStatusFrom(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return cmd.ProcessState.ExitCode()
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}

// devNullReader stands in for /dev/null as a backgrounded job's stdin.
type devNullReader struct{}

func (devNullReader) Read(p []byte) (int, error) { return 0, io.EOF }
