// Package runner executes a candidate implementation as an external process:
// the dataset goes to stdin as JSON and exactly one output document is
// expected back on stdout.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"parity/internal/core"
	"parity/internal/log"
)

// DefaultTimeout bounds a candidate run when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

// waitDelay is how long stdio may stay open after the process is killed.
const waitDelay = 5 * time.Second

// Runner describes one external candidate. Command is the executable and
// Args its arguments; Env entries are appended to the parent environment.
type Runner struct {
	Name    string
	Command string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
	Logger  *log.Logger
}

// New builds a runner from an argv slice such as [go run ./cmd/gp-engine].
func New(name string, argv []string, timeout time.Duration) (*Runner, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, fmt.Errorf("runner %s: empty command", name)
	}
	return &Runner{
		Name:    name,
		Command: argv[0],
		Args:    append([]string(nil), argv[1:]...),
		Timeout: timeout,
	}, nil
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.Discard()
	}
	return r.Logger.WithComponent(log.ComponentRunner)
}

// Run feeds ds to the candidate and returns its raw stdout document.
func (r *Runner) Run(ctx context.Context, ds core.Dataset) ([]byte, error) {
	input, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("encode dataset for %s: %w", r.Name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Command, r.Args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	logger := r.logger()
	started := time.Now()
	logger.DebugContext(ctx, "starting candidate process",
		log.FieldCandidate, r.Name, log.FieldCommand, strings.Join(append([]string{r.Command}, r.Args...), " "))

	runErr := cmd.Run()
	elapsed := time.Since(started)

	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.WarnContext(ctx, "candidate process timed out", log.NewFields().
			WithCandidate(r.Name).WithDuration(elapsed).ToSlice()...)
		return nil, &ProcessError{
			Name:     r.Name,
			Kind:     ErrTimeout,
			ExitCode: -1,
			Detail:   fmt.Sprintf("killed after %s", r.timeout()),
			Stderr:   stderr.String(),
		}
	}
	if runErr != nil {
		perr := &ProcessError{Name: r.Name, ExitCode: -1, Stderr: stderr.String()}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			perr.ExitCode = exitErr.ExitCode()
		} else {
			perr.Err = runErr
		}
		logger.WarnContext(ctx, "candidate process failed",
			log.FieldCandidate, r.Name, log.FieldExitCode, perr.ExitCode, log.FieldError, runErr.Error())
		return nil, perr
	}

	doc, err := singleDocument(stdout.Bytes())
	if err != nil {
		return nil, &ProcessError{
			Name:     r.Name,
			Kind:     ErrInvalidOutput,
			ExitCode: 0,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	logger.DebugContext(ctx, "candidate process finished", log.NewFields().
		WithCandidate(r.Name).WithDuration(elapsed).ToSlice()...)
	return doc, nil
}

// Compute runs the candidate and decodes its document as an Output.
func (r *Runner) Compute(ctx context.Context, ds core.Dataset) (core.Output, error) {
	doc, err := r.Run(ctx, ds)
	if err != nil {
		return core.Output{}, err
	}
	var out core.Output
	if err := json.Unmarshal(doc, &out); err != nil {
		return core.Output{}, fmt.Errorf("%s: decode output: %w: %v", r.Name, ErrInvalidOutput, err)
	}
	return out, nil
}

// Tree runs the candidate and returns its document as a generic tree along
// with the raw bytes, so that keys outside Output are still compared.
func (r *Runner) Tree(ctx context.Context, ds core.Dataset) (any, []byte, error) {
	doc, err := r.Run(ctx, ds)
	if err != nil {
		return nil, nil, err
	}
	var tree any
	if err := json.Unmarshal(doc, &tree); err != nil {
		return nil, nil, fmt.Errorf("%s: decode output: %w: %v", r.Name, ErrInvalidOutput, err)
	}
	return tree, doc, nil
}

// singleDocument accepts exactly one JSON value surrounded by optional
// whitespace.
func singleDocument(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty stdout", ErrInvalidOutput)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var doc json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after first document", ErrInvalidOutput)
	}
	return doc, nil
}
