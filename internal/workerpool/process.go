package workerpool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"ballotscan/internal/errs"
)

// ProcessTransport runs each worker as a child process speaking
// newline-delimited JSON: one request object in on stdin, one response object
// out on stdout. The child's stderr passes through to the parent's.
type ProcessTransport[I, O any] struct {
	path string
	args []string
	env  []string
}

func NewProcessTransport[I, O any](path string, args []string, env []string) (*ProcessTransport[I, O], error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("executable path is required")
	}
	return &ProcessTransport[I, O]{path: path, args: args, env: env}, nil
}

func (t *ProcessTransport[I, O]) Spawn(ctx context.Context) (Worker[I, O], error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(t.path, t.args...)
	if len(t.env) > 0 {
		cmd.Env = t.env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errs.Wrap(err, "open worker stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errs.Wrap(err, "open worker stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errs.Wrapf(err, "start worker process %s", t.path)
	}

	worker := &processWorker[I, O]{
		cmd:     cmd,
		encoder: json.NewEncoder(stdin),
		closer:  stdin,
		replies: make(chan reply[O]),
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
	}
	go worker.readReplies(json.NewDecoder(stdout))
	return worker, nil
}

type reply[O any] struct {
	output O
	err    error
}

type processWorker[I, O any] struct {
	cmd     *exec.Cmd
	encoder *json.Encoder
	closer  interface{ Close() error }
	replies chan reply[O]
	done    chan struct{}
	quit    chan struct{}

	terminateOnce sync.Once
	waitErr       error
}

// readReplies decodes responses until the child's stdout closes. A decode
// failure means the child died or spoke garbage; either way the worker is
// unusable.
func (w *processWorker[I, O]) readReplies(decoder *json.Decoder) {
	defer close(w.done)
	for {
		var output O
		if err := decoder.Decode(&output); err != nil {
			return
		}
		select {
		case w.replies <- reply[O]{output: output}:
		case <-w.quit:
			return
		}
	}
}

func (w *processWorker[I, O]) Call(ctx context.Context, input I) (O, error) {
	var zero O
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if err := w.encoder.Encode(input); err != nil {
		return zero, fmt.Errorf("%w: write request: %v", ErrWorkerCrashed, err)
	}

	select {
	case <-ctx.Done():
		// a request is still in flight; its reply would answer the next
		// caller as if it were theirs, so the worker cannot be reused
		return zero, fmt.Errorf("%w: canceled while awaiting reply: %w", ErrWorkerCrashed, ctx.Err())
	case <-w.done:
		return zero, fmt.Errorf("%w: process exited before replying", ErrWorkerCrashed)
	case r := <-w.replies:
		return r.output, r.err
	}
}

func (w *processWorker[I, O]) Describe() string {
	if w.cmd.Process != nil {
		return fmt.Sprintf("pid-%d", w.cmd.Process.Pid)
	}
	return w.cmd.Path
}

func (w *processWorker[I, O]) Terminate() error {
	w.terminateOnce.Do(func() {
		close(w.quit)
		if err := w.closer.Close(); err != nil {
			w.waitErr = errs.Wrap(err, "close worker stdin")
		}
		if w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
		if err := w.cmd.Wait(); err != nil && w.waitErr == nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				w.waitErr = errs.Wrap(err, "wait for worker process")
			}
		}
	})
	return w.waitErr
}
