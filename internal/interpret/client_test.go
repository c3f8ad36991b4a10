package interpret

import (
	"context"
	"path/filepath"
	"testing"

	"ballotscan/internal/domain/ballot"
	"ballotscan/internal/workerpool"
)

func startedClient(t *testing.T) Client {
	t.Helper()

	interpreter := NewSidecarInterpreter()
	transport, err := workerpool.NewInProcessTransport(interpreter.Handle)
	if err != nil {
		t.Fatalf("NewInProcessTransport() error = %v", err)
	}
	client, err := NewClientWithTransport(transport, 2)
	if err != nil {
		t.Fatalf("NewClientWithTransport() error = %v", err)
	}
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := client.Stop(context.Background()); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return client
}

func TestClientConfigureAndInterpret(t *testing.T) {
	client := startedClient(t)
	ctx := context.Background()

	if err := client.Configure(ctx, Config{}); err == nil {
		t.Fatal("Configure() without election succeeded")
	}
	if err := client.Configure(ctx, *testConfig()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	imagePath := filepath.Join(t.TempDir(), "page.png")
	qrcode, err := client.DetectQrcode(ctx, imagePath)
	if err != nil {
		t.Fatalf("DetectQrcode() error = %v", err)
	}
	if qrcode != nil {
		t.Fatalf("DetectQrcode() = %+v, want nil without a sidecar", qrcode)
	}

	pi, err := client.Interpret(ctx, "sheet-1", imagePath, nil)
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if _, ok := pi.(ballot.BlankPage); !ok {
		t.Fatalf("Interpret() = %T, want BlankPage", pi)
	}

	pi, err = client.Interpret(ctx, "sheet-1", imagePath, testHmpbQrcode(t, 1, true))
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if _, ok := pi.(ballot.UninterpretedHmpbPage); !ok {
		t.Fatalf("Interpret() = %T, want UninterpretedHmpbPage", pi)
	}
}
