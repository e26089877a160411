package kernel

import (
	"context"
	"errors"
	"fmt"
)

// Backend opens kernel sessions.
type Backend interface {
	// Name identifies the backend in logs and listings.
	Name() string

	// Open starts a new, independent kernel session. ctx bounds startup
	// only; the returned handle lives until terminated.
	Open(ctx context.Context) (Handle, error)
}

// Handle is one live kernel session.
//
// Evaluate may be called concurrently; implementations serialize calls as
// the kernel requires. Once Terminate has been called, pending and future
// Evaluate calls must return an error rather than block.
type Handle interface {
	Evaluate(ctx context.Context, code string) (string, error)
	Terminate(ctx context.Context) error
}

var (
	// ErrClosed is returned by Evaluate after Terminate.
	ErrClosed = errors.New("kernel: session terminated")

	// ErrExited is returned when the kernel process exits on its own.
	ErrExited = errors.New("kernel: process exited")

	// ErrNotFound is returned when no kernel executable can be located.
	ErrNotFound = errors.New("kernel: executable not found")
)

// EvalError reports an evaluation the kernel completed with a failure
// status. Output holds whatever the kernel printed.
type EvalError struct {
	Status string
	Output string
}

func (e *EvalError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("kernel: evaluation failed with status %s", e.Status)
	}
	return fmt.Sprintf("kernel: evaluation failed with status %s: %s", e.Status, e.Output)
}
