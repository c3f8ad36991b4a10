package workerpool

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func requireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestProcessWorkerEcho(t *testing.T) {
	requireCommand(t, "cat")

	// cat echoes each request line back, so the reply decodes as the request
	transport, err := NewProcessTransport[map[string]string, map[string]string]("cat", nil, nil)
	if err != nil {
		t.Fatalf("NewProcessTransport() error = %v", err)
	}

	worker, err := transport.Spawn(context.Background())
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	defer func() {
		if err := worker.Terminate(); err != nil {
			t.Errorf("Terminate() error = %v", err)
		}
	}()

	output, err := worker.Call(context.Background(), map[string]string{"action": "ping"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if output["action"] != "ping" {
		t.Fatalf("Call() = %v, want the echoed request", output)
	}
}

func TestProcessWorkerCrashFailsCall(t *testing.T) {
	requireCommand(t, "true")

	// true exits immediately without replying
	transport, err := NewProcessTransport[map[string]string, map[string]string]("true", nil, nil)
	if err != nil {
		t.Fatalf("NewProcessTransport() error = %v", err)
	}

	worker, err := transport.Spawn(context.Background())
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	defer func() { _ = worker.Terminate() }()

	if _, err := worker.Call(context.Background(), map[string]string{"action": "ping"}); !errors.Is(err, ErrWorkerCrashed) {
		t.Fatalf("Call() error = %v, want %v", err, ErrWorkerCrashed)
	}
}

func TestProcessWorkerCancellationMidCallRetiresWorker(t *testing.T) {
	requireCommand(t, "sleep")

	// sleep never replies, so the request stays in flight until the
	// context gives up; the worker must not be reused after that
	transport, err := NewProcessTransport[map[string]string, map[string]string]("sleep", []string{"60"}, nil)
	if err != nil {
		t.Fatalf("NewProcessTransport() error = %v", err)
	}
	worker, err := transport.Spawn(context.Background())
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	defer func() { _ = worker.Terminate() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = worker.Call(ctx, map[string]string{"action": "ping"})
	if !errors.Is(err, ErrWorkerCrashed) {
		t.Fatalf("Call() error = %v, want %v", err, ErrWorkerCrashed)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Call() error = %v, want deadline exceeded in chain", err)
	}
}

func TestProcessWorkerTerminateIsIdempotent(t *testing.T) {
	requireCommand(t, "cat")

	transport, err := NewProcessTransport[map[string]string, map[string]string]("cat", nil, nil)
	if err != nil {
		t.Fatalf("NewProcessTransport() error = %v", err)
	}
	worker, err := transport.Spawn(context.Background())
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	if err := worker.Terminate(); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if err := worker.Terminate(); err != nil {
		t.Fatalf("second Terminate() error = %v", err)
	}

	if _, err := worker.Call(context.Background(), map[string]string{"action": "ping"}); !errors.Is(err, ErrWorkerCrashed) {
		t.Fatalf("Call() after Terminate error = %v, want %v", err, ErrWorkerCrashed)
	}
}

func TestNewProcessTransportRequiresPath(t *testing.T) {
	if _, err := NewProcessTransport[int, int]("  ", nil, nil); err == nil {
		t.Fatal("NewProcessTransport() error = nil, want error for empty path")
	}
}
