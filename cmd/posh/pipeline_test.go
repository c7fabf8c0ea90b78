package main

import (
	"testing"

	"github.com/tmilner/posh/pkg/ast"
)

func TestFlattenPipeLeftLeaning(t *testing.T) {
	a := &ast.Simple{Command: "a", Arguments: []string{"a"}}
	b := &ast.Simple{Command: "b", Arguments: []string{"b"}}
	c := &ast.Simple{Command: "c", Arguments: []string{"c"}}
	tree := &ast.Pipe{Left: &ast.Pipe{Left: a, Right: b}, Right: c}

	stages := flattenPipe(tree)
	if len(stages) != 3 {
		t.Fatalf("want 3 stages, got %d", len(stages))
	}
	names := []string{
		stages[0].cmd.(*ast.Simple).Command,
		stages[1].cmd.(*ast.Simple).Command,
		stages[2].cmd.(*ast.Simple).Command,
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("stage %d: want %s, got %s", i, want[i], names[i])
		}
	}
}

func TestFlattenPipeSingleStage(t *testing.T) {
	simple := &ast.Simple{Command: "echo", Arguments: []string{"echo", "hi"}}
	stages := flattenPipe(simple)
	if len(stages) != 1 {
		t.Fatalf("want 1 stage, got %d", len(stages))
	}
}

func TestResolveRedirectsSingleOutputRedirect(t *testing.T) {
	dir := t.TempDir()
	outPath := dir + "/out.txt"

	simple := &ast.Simple{Command: "cat", Arguments: []string{"cat"}}
	redirected := &ast.Redirect{Child: simple, Kind_: ast.RedirOut, Target: outPath}

	resolved, env, closers, err := resolveRedirects(redirected, &IOEnv{})
	if err != nil {
		t.Fatalf("resolveRedirects: %v", err)
	}
	defer closeAll(closers)

	if resolved.Command != "cat" {
		t.Fatalf("want command cat, got %s", resolved.Command)
	}
	if env.Stdout == nil {
		t.Fatalf("want Stdout redirected to a file")
	}
	if len(closers) != 1 {
		t.Fatalf("want one opened file to close, got %d", len(closers))
	}
}

func TestResolveRedirectsUnknownTargetErrors(t *testing.T) {
	simple := &ast.Simple{Command: "cat", Arguments: []string{"cat"}}
	redirected := &ast.Redirect{Child: simple, Kind_: ast.RedirIn, Target: "/nonexistent/path/for/test"}

	_, _, _, err := resolveRedirects(redirected, &IOEnv{})
	if err == nil {
		t.Fatal("want error opening nonexistent redirect target")
	}
}
