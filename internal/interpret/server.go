package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"ballotscan/internal/bootstrap/logging"
)

// ServeWorker runs the worker side of the protocol: newline-delimited JSON
// requests in, one JSON reply out per request. It returns nil when the input
// stream closes, which is how the pool shuts workers down.
func ServeWorker(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	interpreter := NewSidecarInterpreter()
	decoder := json.NewDecoder(in)
	encoder := json.NewEncoder(out)
	logCtx := logging.WithAttrs(ctx, slog.String("component", "interpret.worker"))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var input Input
		if err := decoder.Decode(&input); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		output, err := interpreter.Handle(ctx, input)
		if err != nil {
			output = Output{Error: err.Error()}
		}
		if output.Error != "" {
			logging.Warn(logCtx, "request failed",
				slog.String("action", string(input.Action)),
				slog.String("error", output.Error),
			)
		}
		if err := encoder.Encode(output); err != nil {
			return err
		}
	}
}
