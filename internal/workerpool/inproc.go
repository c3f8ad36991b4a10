package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// HandlerFunc is the body of an in-process worker.
type HandlerFunc[I, O any] func(ctx context.Context, input I) (O, error)

// InProcessTransport runs workers as plain function calls in the current
// process. Each spawned worker still handles one call at a time.
type InProcessTransport[I, O any] struct {
	handler HandlerFunc[I, O]
	nextID  atomic.Int64
}

func NewInProcessTransport[I, O any](handler HandlerFunc[I, O]) (*InProcessTransport[I, O], error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	return &InProcessTransport[I, O]{handler: handler}, nil
}

func (t *InProcessTransport[I, O]) Spawn(ctx context.Context) (Worker[I, O], error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &inProcessWorker[I, O]{
		handler: t.handler,
		id:      t.nextID.Add(1),
	}, nil
}

type inProcessWorker[I, O any] struct {
	handler    HandlerFunc[I, O]
	id         int64
	terminated atomic.Bool
}

func (w *inProcessWorker[I, O]) Call(ctx context.Context, input I) (O, error) {
	var zero O
	if w.terminated.Load() {
		return zero, ErrWorkerCrashed
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return w.handler(ctx, input)
}

func (w *inProcessWorker[I, O]) Describe() string {
	return fmt.Sprintf("inproc-%d", w.id)
}

func (w *inProcessWorker[I, O]) Terminate() error {
	w.terminated.Store(true)
	return nil
}
