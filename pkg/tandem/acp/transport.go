// Package acp implements the Agent Client Protocol channel used to
// drive a coding-agent CLI subprocess: a line-JSON process transport
// with graceful shutdown, a JSON-RPC request/response correlator with
// per-method timeouts, and a typed client over both.
package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/tandem-dev/tandem/pkg/tandem/streamjson"
	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

const defaultGraceTimeout = 5 * time.Second

// Transport owns the agent subprocess lifecycle: spawn, readiness,
// line-JSON I/O over the child's pipes, and SIGTERM/SIGKILL shutdown.
//
// The transport has exclusive write access to the child's stdin and
// exclusive read access to its stdout. Its terminal error is one-way:
// once exitErr is set it never clears, and all further writes fail.
//
// Cleanup is the owner's responsibility: the component constructing a
// Transport must defer Close so the child is terminated on every exit
// path.
type Transport struct {
	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     io.ReadCloser
	stderr     io.ReadCloser
	decoder    *streamjson.Decoder
	ready      bool
	closed     bool
	stdinEnded bool
	aborted    bool
	exited     bool
	exitErr    error
	exitCh     chan struct{}
	stopAbort  func() bool
	grace      time.Duration
	stderrCB   func(string)
	env        []string
	dir        string
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithGraceTimeout overrides the SIGTERM-to-SIGKILL grace window.
func WithGraceTimeout(d time.Duration) TransportOption {
	return func(t *Transport) { t.grace = d }
}

// WithStderrCallback receives each line the child writes to stderr.
func WithStderrCallback(cb func(string)) TransportOption {
	return func(t *Transport) { t.stderrCB = cb }
}

// WithEnv appends KEY=VALUE entries to the child's inherited
// environment.
func WithEnv(env []string) TransportOption {
	return func(t *Transport) { t.env = env }
}

// WithDir sets the child's working directory.
func WithDir(dir string) TransportOption {
	return func(t *Transport) { t.dir = dir }
}

// NewTransport spawns the agent subprocess. A context that is already
// cancelled fails immediately with an abort error, before any spawn
// attempt. Cancelling the context later prevents new writes and
// begins the kill sequence.
func NewTransport(ctx context.Context, command string, args []string, opts ...TransportOption) (*Transport, error) {
	if ctx.Err() != nil {
		return nil, tandemerrs.NewAbortError("CLI process aborted by user")
	}

	t := &Transport{
		grace:  defaultGraceTimeout,
		exitCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.cmd = exec.Command(command, args...)
	if len(t.env) > 0 {
		t.cmd.Env = append(os.Environ(), t.env...)
	}
	if t.dir != "" {
		t.cmd.Dir = t.dir
	}

	stdin, err := t.cmd.StdinPipe()
	if err != nil {
		return nil, tandemerrs.NewProcessError(
			tandemerrs.ErrCodeSpawnFailed, "stdin pipe failed", err)
	}
	t.stdin = stdin

	stdout, err := t.cmd.StdoutPipe()
	if err != nil {
		return nil, tandemerrs.NewProcessError(
			tandemerrs.ErrCodeSpawnFailed, "stdout pipe failed", err)
	}
	t.stdout = stdout

	stderr, err := t.cmd.StderrPipe()
	if err != nil {
		return nil, tandemerrs.NewProcessError(
			tandemerrs.ErrCodeSpawnFailed, "stderr pipe failed", err)
	}
	t.stderr = stderr

	if err := t.cmd.Start(); err != nil {
		return nil, tandemerrs.NewProcessError(
			tandemerrs.ErrCodeSpawnFailed,
			fmt.Sprintf("failed to spawn %s", command),
			err,
		)
	}

	t.decoder = streamjson.NewDecoder(t.stdout)
	t.ready = true

	if t.stderrCB != nil {
		go t.drainStderr()
	}

	go t.monitor()

	t.stopAbort = context.AfterFunc(ctx, t.abort)

	return t, nil
}

// monitor waits for the child to exit and records the terminal error.
// An abort in progress takes precedence over the process's own exit
// status.
func (t *Transport) monitor() {
	err := t.cmd.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.exited = true
	t.ready = false

	switch {
	case t.aborted:
		t.exitErr = tandemerrs.NewAbortError("CLI process aborted by user")
	case err == nil:
		// clean exit, no terminal error
	default:
		t.exitErr = exitError(err)
	}

	close(t.exitCh)
}

func exitError(err error) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if status, ok := ee.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			pe := tandemerrs.NewProcessError(
				tandemerrs.ErrCodeKilledSignal,
				fmt.Sprintf("CLI process terminated by signal %s", status.Signal()),
				err,
			)
			pe.Signal = status.Signal().String()

			return pe
		}

		pe := tandemerrs.NewProcessError(
			tandemerrs.ErrCodeNonZeroExit,
			fmt.Sprintf("CLI process exited with code %d", ee.ExitCode()),
			err,
		)
		pe.ExitCode = ee.ExitCode()

		return pe
	}

	return tandemerrs.NewProcessError(tandemerrs.ErrCodeProcessTerminated, "CLI process failed", err)
}

// abort is invoked when the construction context is cancelled. It
// blocks new writes and begins the kill sequence.
func (t *Transport) abort() {
	t.mu.Lock()
	t.aborted = true
	alreadyExited := t.exited
	t.mu.Unlock()

	if !alreadyExited {
		go t.kill()
	}
}

// Write serializes payload as one line to the child's stdin. Guards
// run in a fixed, documented order: not-ready, aborted, ended stdin,
// terminated process. Once the process exits, readiness drops first,
// so the not-ready guard fires for all post-exit writes.
func (t *Transport) Write(ctx context.Context, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		return tandemerrs.NewTransportError(
			tandemerrs.ErrCodeNotReady, "transport not ready for writing", nil)
	}
	if t.aborted || ctx.Err() != nil {
		return tandemerrs.NewAbortError("cannot write: operation aborted")
	}
	if t.stdinEnded {
		return tandemerrs.NewTransportError(
			tandemerrs.ErrCodeStreamEnded, "cannot write to ended stream", nil)
	}
	if t.exited {
		return tandemerrs.NewTransportError(
			tandemerrs.ErrCodeProcessTerminated, "cannot write to terminated process", nil)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return tandemerrs.NewTransportError(
			tandemerrs.ErrCodeNotReady, "marshal payload", err)
	}
	data = append(data, '\n')

	if _, err := t.stdin.Write(data); err != nil {
		return tandemerrs.NewTransportError(
			tandemerrs.ErrCodeStreamEnded, "write to child stdin", err)
	}

	return nil
}

// ReadMessages yields validated line-JSON envelopes from the child's
// stdout. The channels close when stdout ends; a codec violation is
// delivered on the error channel first.
func (t *Transport) ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error) {
	return t.decoder.Stream(ctx)
}

// EndInput closes the child's stdin, signalling no more input.
func (t *Transport) EndInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.endInputLocked()
}

func (t *Transport) endInputLocked() error {
	if t.stdinEnded {
		return nil
	}
	t.stdinEnded = true

	return t.stdin.Close()
}

// IsReady reports whether the transport accepts I/O.
func (t *Transport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ready
}

// ExitError returns the terminal error, nil while the process is
// alive or after a clean exit.
func (t *Transport) ExitError() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.exitErr
}

// WaitForExit blocks until the child exits and returns its terminal
// error. An abort rejects with the distinguished abort error rather
// than the generic exit error.
func (t *Transport) WaitForExit(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.exitCh:
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.exitErr
}

// Close terminates the child: SIGTERM, then SIGKILL after the grace
// window. Close is idempotent; repeated calls resend the kill signal
// harmlessly. It always ends stdin and releases the abort watcher.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.ready = false
	_ = t.endInputLocked()
	stop := t.stopAbort
	exited := t.exited
	t.mu.Unlock()

	if stop != nil {
		stop()
	}

	if !exited {
		t.kill()
	}

	return nil
}

// kill delivers SIGTERM and escalates to SIGKILL if the process has
// not exited within the grace window.
func (t *Transport) kill() {
	if t.cmd == nil || t.cmd.Process == nil {
		return
	}

	_ = t.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-t.exitCh:
		return
	case <-time.After(t.grace):
	}

	_ = t.cmd.Process.Kill()
}

func (t *Transport) drainStderr() {
	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		t.stderrCB(scanner.Text())
	}
}
