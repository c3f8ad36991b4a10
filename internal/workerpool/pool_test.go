package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func echoTransport(t *testing.T) *InProcessTransport[string, string] {
	t.Helper()
	transport, err := NewInProcessTransport(func(ctx context.Context, input string) (string, error) {
		return input, nil
	})
	if err != nil {
		t.Fatalf("NewInProcessTransport() error = %v", err)
	}
	return transport
}

func startedPool(t *testing.T, transport Transport[string, string], size int) *Pool[string, string] {
	t.Helper()
	pool, err := New(transport, size)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Stop(context.Background()); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return pool
}

func TestPoolLifecycle(t *testing.T) {
	ctx := context.Background()

	pool, err := New(echoTransport(t), 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := pool.Call(ctx, "ping"); !errors.Is(err, ErrPoolNotStarted) {
		t.Fatalf("Call() before Start error = %v, want %v", err, ErrPoolNotStarted)
	}

	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := pool.Start(ctx); !errors.Is(err, ErrPoolAlreadyStarted) {
		t.Fatalf("second Start() error = %v, want %v", err, ErrPoolAlreadyStarted)
	}

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	if err := pool.Start(ctx); !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("Start() after Stop error = %v, want %v", err, ErrPoolStopped)
	}
	if _, err := pool.Call(ctx, "ping"); !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("Call() after Stop error = %v, want %v", err, ErrPoolStopped)
	}
}

func TestPoolCall(t *testing.T) {
	pool := startedPool(t, echoTransport(t), 2)

	output, err := pool.Call(context.Background(), "ping")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if output != "ping" {
		t.Fatalf("Call() = %s, want ping", output)
	}
	if got := pool.Size(); got != 2 {
		t.Fatalf("Size() = %d, want 2", got)
	}
}

func TestPoolCallQueuesInOrder(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan string, 3)

	transport, err := NewInProcessTransport(func(ctx context.Context, input string) (string, error) {
		started <- input
		if input == "first" {
			<-release
		}
		return input, nil
	})
	if err != nil {
		t.Fatalf("NewInProcessTransport() error = %v", err)
	}
	pool := startedPool(t, transport, 1)

	done := make(chan struct{}, 3)
	call := func(input string) {
		if _, err := pool.Call(ctx, input); err != nil {
			t.Errorf("Call(%s) error = %v", input, err)
		}
		done <- struct{}{}
	}

	go call("first")
	<-started

	go call("second")
	time.Sleep(20 * time.Millisecond)
	go call("third")
	time.Sleep(20 * time.Millisecond)

	close(release)
	for i := 0; i < 3; i++ {
		<-done
	}

	if got := <-started; got != "second" {
		t.Fatalf("second claim went to %s, want second", got)
	}
	if got := <-started; got != "third" {
		t.Fatalf("third claim went to %s, want third", got)
	}
}

func TestPoolCallAll(t *testing.T) {
	var calls atomic.Int64
	transport, err := NewInProcessTransport(func(ctx context.Context, input string) (string, error) {
		calls.Add(1)
		return input, nil
	})
	if err != nil {
		t.Fatalf("NewInProcessTransport() error = %v", err)
	}
	pool := startedPool(t, transport, 3)

	outputs, err := pool.CallAll(context.Background(), "configure")
	if err != nil {
		t.Fatalf("CallAll() error = %v", err)
	}
	if len(outputs) != 3 {
		t.Fatalf("CallAll() returned %d outputs, want 3", len(outputs))
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("handler ran %d times, want 3", got)
	}
}

func TestPoolReleaseServesSpecificWaiterFirst(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan string, 4)

	transport, err := NewInProcessTransport(func(ctx context.Context, input string) (string, error) {
		started <- input
		if input == "first" {
			<-release
		}
		return input, nil
	})
	if err != nil {
		t.Fatalf("NewInProcessTransport() error = %v", err)
	}
	pool := startedPool(t, transport, 1)

	done := make(chan struct{}, 3)
	go func() {
		if _, err := pool.Call(ctx, "first"); err != nil {
			t.Errorf("Call(first) error = %v", err)
		}
		done <- struct{}{}
	}()
	<-started

	// CallAll queues a claim on the busy worker specifically.
	go func() {
		if _, err := pool.CallAll(ctx, "broadcast"); err != nil {
			t.Errorf("CallAll() error = %v", err)
		}
		done <- struct{}{}
	}()
	time.Sleep(20 * time.Millisecond)

	// A general call queued after it.
	go func() {
		if _, err := pool.Call(ctx, "general"); err != nil {
			t.Errorf("Call(general) error = %v", err)
		}
		done <- struct{}{}
	}()
	time.Sleep(20 * time.Millisecond)

	close(release)
	for i := 0; i < 3; i++ {
		<-done
	}

	if got := <-started; got != "broadcast" {
		t.Fatalf("released worker went to %s, want broadcast", got)
	}
	if got := <-started; got != "general" {
		t.Fatalf("next claim went to %s, want general", got)
	}
}

func TestPoolRetiresCrashedWorker(t *testing.T) {
	ctx := context.Background()
	transport, err := NewInProcessTransport(func(ctx context.Context, input string) (string, error) {
		if input == "crash" {
			return "", ErrWorkerCrashed
		}
		return input, nil
	})
	if err != nil {
		t.Fatalf("NewInProcessTransport() error = %v", err)
	}
	pool := startedPool(t, transport, 2)

	if _, err := pool.Call(ctx, "crash"); !errors.Is(err, ErrWorkerCrashed) {
		t.Fatalf("Call(crash) error = %v, want %v", err, ErrWorkerCrashed)
	}
	if got := pool.Size(); got != 1 {
		t.Fatalf("Size() after crash = %d, want 1", got)
	}

	if _, err := pool.Call(ctx, "ping"); err != nil {
		t.Fatalf("Call() on surviving worker error = %v", err)
	}

	if _, err := pool.Call(ctx, "crash"); !errors.Is(err, ErrWorkerCrashed) {
		t.Fatalf("Call(crash) error = %v, want %v", err, ErrWorkerCrashed)
	}
	if _, err := pool.Call(ctx, "ping"); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("Call() with no workers error = %v, want %v", err, ErrNoWorkers)
	}
}

func TestPoolStopFailsPendingClaims(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})

	transport, err := NewInProcessTransport(func(ctx context.Context, input string) (string, error) {
		close(started)
		<-release
		return input, nil
	})
	if err != nil {
		t.Fatalf("NewInProcessTransport() error = %v", err)
	}
	pool, err := New(transport, 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		if _, err := pool.Call(ctx, "first"); err != nil {
			t.Errorf("Call(first) error = %v", err)
		}
	}()
	<-started

	waiterErr := make(chan error, 1)
	go func() {
		_, err := pool.Call(ctx, "second")
		waiterErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := <-waiterErr; !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("queued Call() error = %v, want %v", err, ErrPoolStopped)
	}

	close(release)
	<-firstDone
}

func TestPoolCallHonorsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})

	transport, err := NewInProcessTransport(func(ctx context.Context, input string) (string, error) {
		close(started)
		<-release
		return input, nil
	})
	if err != nil {
		t.Fatalf("NewInProcessTransport() error = %v", err)
	}
	pool := startedPool(t, transport, 1)

	go func() {
		if _, err := pool.Call(context.Background(), "first"); err != nil {
			t.Errorf("Call(first) error = %v", err)
		}
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := pool.Call(ctx, "second"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Call() error = %v, want %v", err, context.DeadlineExceeded)
	}
}
