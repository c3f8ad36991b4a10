package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestServeWorker(t *testing.T) {
	var in bytes.Buffer
	encoder := json.NewEncoder(&in)
	if err := encoder.Encode(Input{Action: ActionConfigure, Config: testConfig()}); err != nil {
		t.Fatalf("encode configure: %v", err)
	}
	if err := encoder.Encode(Input{Action: ActionInterpret, SheetID: "sheet-1", ImagePath: "/nowhere/page.png"}); err != nil {
		t.Fatalf("encode interpret: %v", err)
	}

	var out bytes.Buffer
	if err := ServeWorker(context.Background(), &in, &out); err != nil {
		t.Fatalf("ServeWorker() error = %v", err)
	}

	decoder := json.NewDecoder(&out)

	var configured Output
	if err := decoder.Decode(&configured); err != nil {
		t.Fatalf("decode configure reply: %v", err)
	}
	if configured.Error != "" {
		t.Fatalf("configure reply error = %s", configured.Error)
	}

	var interpreted Output
	if err := decoder.Decode(&interpreted); err != nil {
		t.Fatalf("decode interpret reply: %v", err)
	}
	if interpreted.Error != "" {
		t.Fatalf("interpret reply error = %s", interpreted.Error)
	}
	if interpreted.Interpretation == nil {
		t.Fatal("interpret reply has no interpretation")
	}
	if got := interpreted.Interpretation.InterpretationType(); got != "BlankPage" {
		t.Fatalf("interpretation type = %s, want BlankPage", got)
	}
}

func TestServeWorkerReportsHandlerErrors(t *testing.T) {
	in := strings.NewReader(`{"action":"interpret"}` + "\n")
	var out bytes.Buffer

	if err := ServeWorker(context.Background(), in, &out); err != nil {
		t.Fatalf("ServeWorker() error = %v", err)
	}

	var reply Output
	if err := json.NewDecoder(&out).Decode(&reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if !strings.Contains(reply.Error, ErrNotConfigured.Error()) {
		t.Fatalf("reply error = %q, want not configured", reply.Error)
	}
}
