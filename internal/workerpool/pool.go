package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ballotscan/internal/bootstrap/logging"
	"ballotscan/internal/errs"
)

var (
	ErrPoolNotStarted     = errors.New("worker pool is not started")
	ErrPoolAlreadyStarted = errors.New("worker pool is already started")
	ErrPoolStopped        = errors.New("worker pool is stopped")
	ErrNoWorkers          = errors.New("worker pool has no live workers")

	// ErrWorkerCrashed marks a call that failed because the worker died
	// mid-call. The pool retires the worker and does not respawn it.
	ErrWorkerCrashed = errors.New("worker crashed")
)

// Worker handles one call at a time. Implementations are not required to be
// safe for concurrent calls; the pool serializes access through claims.
type Worker[I, O any] interface {
	Call(ctx context.Context, input I) (O, error)
	Describe() string
	Terminate() error
}

// Transport spawns workers for a pool.
type Transport[I, O any] interface {
	Spawn(ctx context.Context) (Worker[I, O], error)
}

type poolState int

const (
	stateUnstarted poolState = iota
	stateStarted
	stateStopped
)

type claimResult[I, O any] struct {
	worker Worker[I, O]
	err    error
}

type claim[I, O any] struct {
	ch chan claimResult[I, O]
}

// Pool runs a fixed set of workers and hands out exclusive claims on them.
// Claims for any worker are served first come first served; a claim for one
// specific worker is served ahead of the general queue when that worker is
// released.
type Pool[I, O any] struct {
	transport Transport[I, O]
	size      int

	mu            sync.Mutex
	state         poolState
	workers       map[Worker[I, O]]struct{}
	free          []Worker[I, O]
	anyWaiters    []*claim[I, O]
	workerWaiters map[Worker[I, O]][]*claim[I, O]
}

// New creates a pool of size workers spawned from transport. The pool does
// not spawn anything until Start.
func New[I, O any](transport Transport[I, O], size int) (*Pool[I, O], error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if size < 1 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	return &Pool[I, O]{
		transport:     transport,
		size:          size,
		workers:       make(map[Worker[I, O]]struct{}),
		workerWaiters: make(map[Worker[I, O]][]*claim[I, O]),
	}, nil
}

// Start spawns the pool's workers. A pool starts at most once; a stopped pool
// stays stopped.
func (p *Pool[I, O]) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	p.mu.Lock()
	switch p.state {
	case stateStarted:
		p.mu.Unlock()
		return ErrPoolAlreadyStarted
	case stateStopped:
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.state = stateStarted
	p.mu.Unlock()

	logCtx := logging.WithAttrs(ctx, slog.String("component", "workerpool"))
	for i := 0; i < p.size; i++ {
		worker, err := p.transport.Spawn(ctx)
		if err != nil {
			stopErr := p.Stop(ctx)
			if stopErr != nil {
				logging.Warn(logCtx, "stop after failed spawn", slog.String("error", stopErr.Error()))
			}
			return errs.Wrapf(err, "spawn worker %d", i)
		}

		p.mu.Lock()
		p.workers[worker] = struct{}{}
		p.free = append(p.free, worker)
		p.mu.Unlock()
		logging.Info(logCtx, "worker spawned", slog.String("worker", worker.Describe()))
	}
	return nil
}

// Stop terminates all workers and fails pending claims. Stop is idempotent.
func (p *Pool[I, O]) Stop(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	p.mu.Lock()
	if p.state == stateStopped {
		p.mu.Unlock()
		return nil
	}
	p.state = stateStopped

	workers := make([]Worker[I, O], 0, len(p.workers))
	for worker := range p.workers {
		workers = append(workers, worker)
	}
	p.workers = make(map[Worker[I, O]]struct{})
	p.free = nil

	waiters := p.anyWaiters
	p.anyWaiters = nil
	for _, perWorker := range p.workerWaiters {
		waiters = append(waiters, perWorker...)
	}
	p.workerWaiters = make(map[Worker[I, O]][]*claim[I, O])
	p.mu.Unlock()

	for _, waiter := range waiters {
		waiter.ch <- claimResult[I, O]{err: ErrPoolStopped}
	}

	var firstErr error
	logCtx := logging.WithAttrs(ctx, slog.String("component", "workerpool"))
	for _, worker := range workers {
		if err := worker.Terminate(); err != nil {
			logging.Warn(logCtx, "terminate worker", slog.String("worker", worker.Describe()), slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = errs.Wrap(err, "terminate worker")
			}
		}
	}
	return firstErr
}

// Call claims a free worker, runs one call on it, and releases it. Callers
// queue first come first served when every worker is busy. A crashed worker
// fails the call and leaves the pool permanently smaller.
func (p *Pool[I, O]) Call(ctx context.Context, input I) (O, error) {
	var zero O
	if ctx == nil {
		return zero, errors.New("context is required")
	}

	worker, err := p.claimAny(ctx)
	if err != nil {
		return zero, err
	}

	output, err := worker.Call(ctx, input)
	if errors.Is(err, ErrWorkerCrashed) {
		p.retire(ctx, worker)
		return zero, err
	}
	p.release(worker)
	return output, err
}

// CallAll runs the same call once on every live worker, claiming each worker
// as it becomes free, and collects the outputs in no particular order.
func (p *Pool[I, O]) CallAll(ctx context.Context, input I) ([]O, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	p.mu.Lock()
	if p.state != stateStarted {
		state := p.state
		p.mu.Unlock()
		if state == stateStopped {
			return nil, ErrPoolStopped
		}
		return nil, ErrPoolNotStarted
	}
	workers := make([]Worker[I, O], 0, len(p.workers))
	for worker := range p.workers {
		workers = append(workers, worker)
	}
	p.mu.Unlock()

	if len(workers) == 0 {
		return nil, ErrNoWorkers
	}

	outputs := make([]O, 0, len(workers))
	var firstErr error
	for _, worker := range workers {
		claimed, err := p.claimWorker(ctx, worker)
		if err != nil {
			if errors.Is(err, errWorkerGone) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			break
		}

		output, err := claimed.Call(ctx, input)
		if errors.Is(err, ErrWorkerCrashed) {
			p.retire(ctx, claimed)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		p.release(claimed)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		outputs = append(outputs, output)
	}
	return outputs, firstErr
}

var errWorkerGone = errors.New("worker is no longer part of the pool")

func (p *Pool[I, O]) claimAny(ctx context.Context) (Worker[I, O], error) {
	p.mu.Lock()
	if p.state != stateStarted {
		state := p.state
		p.mu.Unlock()
		if state == stateStopped {
			return nil, ErrPoolStopped
		}
		return nil, ErrPoolNotStarted
	}
	if len(p.workers) == 0 {
		p.mu.Unlock()
		return nil, ErrNoWorkers
	}
	if len(p.free) > 0 {
		worker := p.free[0]
		p.free = p.free[1:]
		p.mu.Unlock()
		return worker, nil
	}

	waiter := &claim[I, O]{ch: make(chan claimResult[I, O], 1)}
	p.anyWaiters = append(p.anyWaiters, waiter)
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		p.abandon(waiter)
		return nil, errs.Wrap(ctx.Err(), "wait for free worker")
	case result := <-waiter.ch:
		return result.worker, result.err
	}
}

func (p *Pool[I, O]) claimWorker(ctx context.Context, worker Worker[I, O]) (Worker[I, O], error) {
	p.mu.Lock()
	if p.state != stateStarted {
		state := p.state
		p.mu.Unlock()
		if state == stateStopped {
			return nil, ErrPoolStopped
		}
		return nil, ErrPoolNotStarted
	}
	if _, ok := p.workers[worker]; !ok {
		p.mu.Unlock()
		return nil, errWorkerGone
	}
	for i, free := range p.free {
		if free == worker {
			p.free = append(p.free[:i], p.free[i+1:]...)
			p.mu.Unlock()
			return worker, nil
		}
	}

	waiter := &claim[I, O]{ch: make(chan claimResult[I, O], 1)}
	p.workerWaiters[worker] = append(p.workerWaiters[worker], waiter)
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		p.abandon(waiter)
		return nil, errs.Wrap(ctx.Err(), "wait for specific worker")
	case result := <-waiter.ch:
		return result.worker, result.err
	}
}

// release returns a worker to the pool. A waiter for this specific worker is
// served before the general queue.
func (p *Pool[I, O]) release(worker Worker[I, O]) {
	p.mu.Lock()
	if p.state != stateStarted {
		p.mu.Unlock()
		return
	}
	if _, ok := p.workers[worker]; !ok {
		p.mu.Unlock()
		return
	}

	if perWorker := p.workerWaiters[worker]; len(perWorker) > 0 {
		waiter := perWorker[0]
		if len(perWorker) == 1 {
			delete(p.workerWaiters, worker)
		} else {
			p.workerWaiters[worker] = perWorker[1:]
		}
		p.mu.Unlock()
		waiter.ch <- claimResult[I, O]{worker: worker}
		return
	}
	if len(p.anyWaiters) > 0 {
		waiter := p.anyWaiters[0]
		p.anyWaiters = p.anyWaiters[1:]
		p.mu.Unlock()
		waiter.ch <- claimResult[I, O]{worker: worker}
		return
	}

	p.free = append(p.free, worker)
	p.mu.Unlock()
}

// retire drops a crashed worker from the pool and fails its pending waiters.
func (p *Pool[I, O]) retire(ctx context.Context, worker Worker[I, O]) {
	p.mu.Lock()
	delete(p.workers, worker)
	for i, free := range p.free {
		if free == worker {
			p.free = append(p.free[:i], p.free[i+1:]...)
			break
		}
	}
	waiters := p.workerWaiters[worker]
	delete(p.workerWaiters, worker)
	p.mu.Unlock()

	for _, waiter := range waiters {
		waiter.ch <- claimResult[I, O]{err: ErrWorkerCrashed}
	}

	logging.Warn(
		logging.WithAttrs(ctx, slog.String("component", "workerpool")),
		"worker retired after crash",
		slog.String("worker", worker.Describe()),
	)
	if err := worker.Terminate(); err != nil {
		logging.Warn(ctx, "terminate crashed worker", slog.String("error", err.Error()))
	}
}

// abandon removes a waiter whose context expired. The waiter may already hold
// a delivered worker; if so, put it back.
func (p *Pool[I, O]) abandon(waiter *claim[I, O]) {
	p.mu.Lock()
	for i, pending := range p.anyWaiters {
		if pending == waiter {
			p.anyWaiters = append(p.anyWaiters[:i], p.anyWaiters[i+1:]...)
			p.mu.Unlock()
			return
		}
	}
	for worker, perWorker := range p.workerWaiters {
		for i, pending := range perWorker {
			if pending == waiter {
				p.workerWaiters[worker] = append(perWorker[:i], perWorker[i+1:]...)
				p.mu.Unlock()
				return
			}
		}
	}
	p.mu.Unlock()

	select {
	case result := <-waiter.ch:
		if result.worker != nil {
			p.release(result.worker)
		}
	default:
	}
}

// Size reports the number of live workers.
func (p *Pool[I, O]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}
