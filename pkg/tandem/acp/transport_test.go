package acp

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tandem-dev/tandem/pkg/tandem/options"
	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

func TestNewTransportAbortedBeforeSpawn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The command does not exist; reaching spawn would produce a
	// spawn error, not an abort error.
	_, err := NewTransport(ctx, "definitely-not-a-real-binary-xyz", nil)
	if err == nil {
		t.Fatal("NewTransport succeeded with a cancelled context")
	}
	if !tandemerrs.IsAbort(err) {
		t.Errorf("error = %v, want abort error", err)
	}
	if got, want := err.Error(), "CLI process aborted by user"; !contains(got, want) {
		t.Errorf("error message = %q, want it to contain %q", got, want)
	}
}

func contains(s, sub string) bool { return bytes.Contains([]byte(s), []byte(sub)) }

func TestWriteGuardOrder(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*Transport)
		ctx      func() context.Context
		wantMsg  string
		wantCode tandemerrs.ErrorCode
	}{
		{
			name:     "not ready fires first regardless of other state",
			setup:    func(tr *Transport) { tr.stdinEnded = true; tr.exited = true },
			wantMsg:  "transport not ready for writing",
			wantCode: tandemerrs.ErrCodeNotReady,
		},
		{
			name:     "aborted after readiness",
			setup:    func(tr *Transport) { tr.ready = true; tr.aborted = true; tr.stdinEnded = true },
			wantMsg:  "cannot write: operation aborted",
			wantCode: tandemerrs.ErrCodeAborted,
		},
		{
			name: "cancelled context counts as aborted",
			setup: func(tr *Transport) {
				tr.ready = true
			},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()

				return ctx
			},
			wantMsg:  "cannot write: operation aborted",
			wantCode: tandemerrs.ErrCodeAborted,
		},
		{
			name:     "ended stdin after abort check",
			setup:    func(tr *Transport) { tr.ready = true; tr.stdinEnded = true; tr.exited = true },
			wantMsg:  "cannot write to ended stream",
			wantCode: tandemerrs.ErrCodeStreamEnded,
		},
		{
			name:     "terminated process last",
			setup:    func(tr *Transport) { tr.ready = true; tr.exited = true },
			wantMsg:  "cannot write to terminated process",
			wantCode: tandemerrs.ErrCodeProcessTerminated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Transport{stdin: nopWriteCloser{&bytes.Buffer{}}}
			tt.setup(tr)

			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}

			err := tr.Write(ctx, map[string]any{"type": "ping"})
			if err == nil {
				t.Fatal("Write succeeded, want guard error")
			}
			if !contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
			if !tandemerrs.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestTransportRoundTrip(t *testing.T) {
	ctx := context.Background()

	// cat echoes stdin to stdout, so a written envelope comes back
	// through the codec.
	tr, err := NewTransport(ctx, "cat", nil)
	if err != nil {
		t.Fatalf("NewTransport error = %v", err)
	}
	defer tr.Close()

	if !tr.IsReady() {
		t.Fatal("transport not ready after spawn")
	}

	msgCh, errCh := tr.ReadMessages(ctx)

	payload := map[string]any{"type": "ping", "seq": 1}
	if err := tr.Write(ctx, payload); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	if err := tr.EndInput(); err != nil {
		t.Fatalf("EndInput error = %v", err)
	}

	select {
	case msg := <-msgCh:
		if msg["type"] != "ping" {
			t.Errorf("echoed type = %v, want ping", msg["type"])
		}
	case err := <-errCh:
		t.Fatalf("read error = %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}

	if err := tr.WaitForExit(ctx); err != nil {
		t.Errorf("WaitForExit after clean exit = %v, want nil", err)
	}
	if tr.ExitError() != nil {
		t.Errorf("ExitError = %v, want nil", tr.ExitError())
	}
}

func TestTransportNonZeroExit(t *testing.T) {
	ctx := context.Background()

	tr, err := NewTransport(ctx, "sh", []string{"-c", "exit 7"})
	if err != nil {
		t.Fatalf("NewTransport error = %v", err)
	}
	defer tr.Close()

	err = tr.WaitForExit(ctx)
	if err == nil {
		t.Fatal("WaitForExit returned nil for non-zero exit")
	}
	if !contains(err.Error(), "CLI process exited with code 7") {
		t.Errorf("error = %q, want exit code message", err.Error())
	}

	var pe *tandemerrs.ProcessError
	if !errors.As(err, &pe) {
		t.Fatalf("error %v is not a ProcessError", err)
	}
	if pe.ExitCode != 7 {
		t.Errorf("ExitCode = %d, want 7", pe.ExitCode)
	}

	// Readiness drops on exit, so the not-ready guard fires for all
	// later writes.
	werr := tr.Write(ctx, map[string]any{"type": "late"})
	if werr == nil || !contains(werr.Error(), "transport not ready for writing") {
		t.Errorf("post-exit write error = %v, want not-ready guard", werr)
	}
}

func TestTransportAbortDuringRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr, err := NewTransport(ctx, "sleep", []string{"30"}, WithGraceTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("NewTransport error = %v", err)
	}
	defer tr.Close()

	cancel()

	err = tr.WaitForExit(context.Background())
	if err == nil {
		t.Fatal("WaitForExit returned nil after abort")
	}
	if !tandemerrs.IsAbort(err) {
		t.Errorf("error = %v, want distinguished abort error", err)
	}
	if !contains(err.Error(), "CLI process aborted by user") {
		t.Errorf("error = %q, want abort message", err.Error())
	}
}

func TestSpawnFromOptions(t *testing.T) {
	ctx := context.Background()

	opts := &options.AgentOptions{
		Model:  "test-model",
		Cwd:    t.TempDir(),
		Env:    map[string]string{"TANDEM_TEST": "1"},
		Stderr: func(string) {},
	}

	// env prints its environment; the injected variable must appear.
	tr, err := Spawn(ctx, "env", opts, WithGraceTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("Spawn error = %v", err)
	}
	defer tr.Close()

	found := false
	for _, kv := range tr.cmd.Env {
		if kv == "TANDEM_TEST=1" {
			found = true
		}
	}
	if !found {
		t.Error("spawned process missing injected environment variable")
	}
	if tr.cmd.Dir != opts.Cwd {
		t.Errorf("Dir = %q, want %q", tr.cmd.Dir, opts.Cwd)
	}

	// BuildArgs output leads with the wire-format contract.
	if len(tr.cmd.Args) < 3 || tr.cmd.Args[1] != "--input-format" {
		t.Errorf("argv = %v, want --input-format first", tr.cmd.Args)
	}
	if tr.stderrCB == nil {
		t.Error("stderr callback not carried over")
	}
}

func TestCloseIdempotent(t *testing.T) {
	ctx := context.Background()

	tr, err := NewTransport(ctx, "cat", nil, WithGraceTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("NewTransport error = %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("first Close error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close error = %v", err)
	}

	// cat exits on closed stdin, which may race the SIGTERM; either a
	// clean exit or a signal-termination error is acceptable here.
	_ = tr.WaitForExit(ctx)
}
