// Package oracle invokes the external summarization subprocess the rest
// of the engine treats as an opaque text-in/text-out callable.
package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Oracle is a callable summarization backend. Invoke may block for the
// duration of a subprocess call; callers are expected to bound it with a
// context deadline.
type Oracle interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// ErrNotInstalled reports that the configured oracle binary could not be
// found or started. This is a permanent failure, never retried.
var ErrNotInstalled = errors.New("oracle: binary not installed")

// programmaticEnvVar is set on every subprocess invocation so cooperating
// oracles can disable session-start side effects.
const programmaticEnvVar = "GARDE_MEM_PROGRAMMATIC=1"

// transientMarkers are substrings on stderr that indicate a retryable
// failure (rate limiting, transient backend errors) as opposed to a
// fatal one.
var transientMarkers = []string{
	"rate limit",
	"rate-limited",
	"temporarily unavailable",
	"try again",
}

// SubprocessOracle execs a configured command with the prompt on stdin
// and the response on stdout.
type SubprocessOracle struct {
	Command []string
	Timeout time.Duration // default 120s
	Retry   backoff.BackOff
}

// NewSubprocessOracle builds a SubprocessOracle with the package defaults:
// a 120s timeout and up to 2 retries with exponential backoff for
// transient failures only.
func NewSubprocessOracle(command []string) *SubprocessOracle {
	return &SubprocessOracle{
		Command: command,
		Timeout: 120 * time.Second,
		Retry:   backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2),
	}
}

// Invoke runs the configured command once, retrying only on a transient
// failure signature. Binary-not-found is surfaced immediately as
// ErrNotInstalled and never retried.
func (o *SubprocessOracle) Invoke(ctx context.Context, prompt string) (string, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	var out string
	op := func() error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := o.run(ctx, prompt)
		if err != nil {
			if errors.Is(err, ErrNotInstalled) {
				return backoff.Permanent(err)
			}
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = result
		return nil
	}

	retry := o.Retry
	if retry == nil {
		retry = backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	}
	if err := backoff.Retry(op, retry); err != nil {
		return "", fmt.Errorf("invoke oracle: %w", err)
	}
	return out, nil
}

func (o *SubprocessOracle) run(ctx context.Context, prompt string) (string, error) {
	if len(o.Command) == 0 {
		return "", fmt.Errorf("oracle: no command configured")
	}

	cmd := exec.CommandContext(ctx, o.Command[0], o.Command[1:]...)
	cmd.Env = append(cmd.Environ(), programmaticEnvVar)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrNotInstalled
		}
		var pathErr *exec.Error
		if errors.As(err, &pathErr) {
			return "", ErrNotInstalled
		}
		return "", fmt.Errorf("oracle exited: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
