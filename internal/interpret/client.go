package interpret

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ballotscan/internal/domain/ballot"
	"ballotscan/internal/errs"
	"ballotscan/internal/workerpool"
)

// Client drives a pool of interpreter workers.
type Client interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Configure pushes the election configuration to every worker.
	Configure(ctx context.Context, cfg Config) error

	DetectQrcode(ctx context.Context, imagePath string) (*ballot.Qrcode, error)
	Interpret(ctx context.Context, sheetID, imagePath string, qrcode *ballot.Qrcode) (ballot.PageInterpretation, error)
}

type poolClient struct {
	pool *workerpool.Pool[Input, Output]
}

// NewClient builds a client from an interpreter profile. The in-process
// transport runs sidecar interpreters in this process; the process transport
// spawns the configured worker executable per pool slot.
func NewClient(profile Profile) (Client, error) {
	var transport workerpool.Transport[Input, Output]
	switch profile.Pool.Transport {
	case TransportInProcess:
		interpreter := NewSidecarInterpreter()
		t, err := workerpool.NewInProcessTransport(interpreter.Handle)
		if err != nil {
			return nil, err
		}
		transport = t
	case TransportProcess:
		t, err := workerpool.NewProcessTransport[Input, Output](profile.Worker.Program, profile.Worker.Args, os.Environ())
		if err != nil {
			return nil, err
		}
		transport = t
	default:
		return nil, fmt.Errorf("unknown pool transport %q", profile.Pool.Transport)
	}

	pool, err := workerpool.New(transport, profile.Pool.Size)
	if err != nil {
		return nil, err
	}
	return &poolClient{pool: pool}, nil
}

// NewClientWithTransport builds a client over an explicit transport.
func NewClientWithTransport(transport workerpool.Transport[Input, Output], size int) (Client, error) {
	pool, err := workerpool.New(transport, size)
	if err != nil {
		return nil, err
	}
	return &poolClient{pool: pool}, nil
}

func (c *poolClient) Start(ctx context.Context) error {
	return c.pool.Start(ctx)
}

func (c *poolClient) Stop(ctx context.Context) error {
	return c.pool.Stop(ctx)
}

func (c *poolClient) Configure(ctx context.Context, cfg Config) error {
	if cfg.Election == nil {
		return errors.New("election is required")
	}

	outputs, err := c.pool.CallAll(ctx, Input{Action: ActionConfigure, Config: &cfg})
	if err != nil {
		return errs.Wrap(err, "configure interpreter workers")
	}
	for _, output := range outputs {
		if output.Error != "" {
			return fmt.Errorf("configure interpreter worker: %s", output.Error)
		}
	}
	return nil
}

func (c *poolClient) DetectQrcode(ctx context.Context, imagePath string) (*ballot.Qrcode, error) {
	output, err := c.pool.Call(ctx, Input{Action: ActionDetectQrcode, ImagePath: imagePath})
	if err != nil {
		return nil, errs.Wrapf(err, "detect qrcode on %s", imagePath)
	}
	if output.Error != "" {
		return nil, fmt.Errorf("detect qrcode on %s: %s", imagePath, output.Error)
	}
	return output.Qrcode, nil
}

func (c *poolClient) Interpret(ctx context.Context, sheetID, imagePath string, qrcode *ballot.Qrcode) (ballot.PageInterpretation, error) {
	output, err := c.pool.Call(ctx, Input{
		Action:    ActionInterpret,
		SheetID:   sheetID,
		ImagePath: imagePath,
		Qrcode:    qrcode,
	})
	if err != nil {
		return nil, errs.Wrapf(err, "interpret %s", imagePath)
	}
	if output.Error != "" {
		return nil, fmt.Errorf("interpret %s: %s", imagePath, output.Error)
	}
	if output.Interpretation == nil || output.Interpretation.PageInterpretation == nil {
		return nil, fmt.Errorf("interpret %s: worker returned no interpretation", imagePath)
	}
	return output.Interpretation.PageInterpretation, nil
}
