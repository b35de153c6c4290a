package exec

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExecRunner_Run(t *testing.T) {
	out, err := NewRunner().Run(context.Background(), t.TempDir(), "echo", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("output = %q, want hello", out)
	}
}

func TestExecRunner_RunShell(t *testing.T) {
	out, err := NewRunner().RunShell(context.Background(), "", "echo a && echo b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "a\nb\n" {
		t.Errorf("output = %q", out)
	}
}

func TestExecRunner_Stream(t *testing.T) {
	var stdout, stderr []string
	err := NewRunner().Stream(context.Background(), StreamRequest{
		Name:     "bash",
		Args:     []string{"-c", "echo one; echo two; echo oops >&2"},
		OnStdout: func(l string) { stdout = append(stdout, l) },
		OnStderr: func(l string) { stderr = append(stderr, l) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(stdout, ",") != "one,two" {
		t.Errorf("stdout = %v", stdout)
	}
	if strings.Join(stderr, ",") != "oops" {
		t.Errorf("stderr = %v", stderr)
	}
}

func TestExecRunner_StreamExitCode(t *testing.T) {
	err := NewRunner().Stream(context.Background(), StreamRequest{
		Name: "bash",
		Args: []string{"-c", "exit 3"},
	})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
}

func TestExecRunner_StreamEnv(t *testing.T) {
	var got string
	err := NewRunner().Stream(context.Background(), StreamRequest{
		Name:     "bash",
		Args:     []string{"-c", "echo $RELAY_TEST_VALUE"},
		Env:      []string{"RELAY_TEST_VALUE=42"},
		OnStdout: func(l string) { got = l },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "42" {
		t.Errorf("got %q, want 42", got)
	}
}

func TestExecRunner_LookPath(t *testing.T) {
	if _, err := NewRunner().LookPath("bash"); err != nil {
		t.Errorf("bash should be on PATH: %v", err)
	}
	if _, err := NewRunner().LookPath("definitely-not-a-real-binary-xyz"); err == nil {
		t.Error("expected error for missing binary")
	}
}
