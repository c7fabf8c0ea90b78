package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/tmilner/posh/internal/shellstate"
	"github.com/tmilner/posh/pkg/parser"
)

func newTestContext() *execContext {
	return newExecContext(shellstate.NewContext(0))
}

func runLine(t *testing.T, line string) (int, string, string) {
	t.Helper()
	cmd, err := parser.ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine(%q): %v", line, err)
	}
	var stdout, stderr bytes.Buffer
	env := &IOEnv{Stdin: strings.NewReader(""), Stdout: &stdout, Stderr: &stderr}
	status, err := Execute(cmd, newTestContext(), env)
	if err != nil {
		t.Fatalf("Execute(%q): %v", line, err)
	}
	return status, stdout.String(), stderr.String()
}

func TestExecuteSimpleExternal(t *testing.T) {
	status, out, _ := runLine(t, "echo hello")
	if status != 0 {
		t.Fatalf("want status 0, got %d", status)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Fatalf("want %q, got %q", "hello", out)
	}
}

func TestExecutePipe(t *testing.T) {
	status, out, _ := runLine(t, `printf "one\ntwo\nthree\n" | wc -l`)
	if status != 0 {
		t.Fatalf("want status 0, got %d", status)
	}
	if strings.TrimSpace(out) != "3" {
		t.Fatalf("want %q, got %q", "3", out)
	}
}

func TestExecuteSequenceRunsBoth(t *testing.T) {
	status, out, _ := runLine(t, "echo first; echo second")
	if status != 0 {
		t.Fatalf("want status 0, got %d", status)
	}
	if out != "first\nsecond\n" {
		t.Fatalf("want both outputs, got %q", out)
	}
}

func TestExecuteConditionalAndShortCircuits(t *testing.T) {
	status, out, _ := runLine(t, "false && echo unreachable")
	if status == 0 {
		t.Fatalf("want nonzero status from false")
	}
	if out != "" {
		t.Fatalf("want no output, got %q", out)
	}
}

func TestExecuteConditionalOrRunsOnFailure(t *testing.T) {
	status, out, _ := runLine(t, "false || echo fallback")
	if status != 0 {
		t.Fatalf("want status 0, got %d", status)
	}
	if strings.TrimSpace(out) != "fallback" {
		t.Fatalf("want %q, got %q", "fallback", out)
	}
}

func TestExecuteRedirectOutWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.txt"
	status, _, _ := runLine(t, "echo hi > "+path)
	if status != 0 {
		t.Fatalf("want status 0, got %d", status)
	}
	data := readFile(t, path)
	if strings.TrimSpace(data) != "hi" {
		t.Fatalf("want file content %q, got %q", "hi", data)
	}
}

func TestExecuteBuiltinCdChangesDirectory(t *testing.T) {
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	t.Cleanup(func() { os.Chdir(prev) })

	dir := t.TempDir()
	status, _, _ := runLine(t, "cd "+dir)
	if status != 0 {
		t.Fatalf("want status 0, got %d", status)
	}
}

func TestExecuteBackgroundReturnsImmediately(t *testing.T) {
	ctx := newTestContext()
	cmd, err := parser.ParseLine("sleep 1 &")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	var stdout, stderr bytes.Buffer
	env := &IOEnv{Stdin: strings.NewReader(""), Stdout: &stdout, Stderr: &stderr}
	status, err := Execute(cmd, ctx, env)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if status != 0 {
		t.Fatalf("want status 0 for backgrounded command, got %d", status)
	}
	if ctx.state.Jobs.Current() == nil {
		t.Fatalf("want job registered for backgrounded command")
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
