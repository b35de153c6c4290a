// Package exec provides an interface for command execution.
package exec

import (
	"context"
)

// StreamRequest describes a command whose output is consumed line by line.
type StreamRequest struct {
	// Name is the program to run.
	Name string
	// Args are passed to the program.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the current environment.
	Env []string
	// OnStdout receives each stdout line without its trailing newline.
	OnStdout func(line string)
	// OnStderr receives each stderr line without its trailing newline.
	OnStderr func(line string)
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunShell executes a shell command through "bash -c".
	RunShell(ctx context.Context, workDir string, command string) (output []byte, err error)

	// Stream runs a command and delivers its output as it is produced.
	// The returned error is an *ExitError when the command exits non-zero.
	Stream(ctx context.Context, req StreamRequest) error

	// LookPath reports whether name resolves to an executable on PATH.
	LookPath(name string) (string, error)
}
