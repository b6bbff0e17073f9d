package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStubLoaderFailures(t *testing.T) {
	offlineErr := errors.New("not cached")
	onlineErr := errors.New("network down")
	loader := &StubLoader{Log: discardLogger(), OfflineErr: offlineErr, OnlineErr: onlineErr}

	if _, err := loader.Load(context.Background(), "org/model", true); !errors.Is(err, offlineErr) {
		t.Fatalf("offline load: expected %v, got %v", offlineErr, err)
	}
	if _, err := loader.Load(context.Background(), "org/model", false); !errors.Is(err, onlineErr) {
		t.Fatalf("online load: expected %v, got %v", onlineErr, err)
	}
	if got := loader.Loads(); got != 2 {
		t.Fatalf("expected 2 load attempts, got %d", got)
	}
}

func TestStubModelGenerate(t *testing.T) {
	model, err := NewStubLoader(discardLogger()).Load(context.Background(), "org/model", true)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	defer model.Close()

	features, err := model.Features(make([]float32, 8000))
	if err != nil {
		t.Fatalf("Features error: %v", err)
	}
	if got := features.Duration().Milliseconds(); got != 500 {
		t.Fatalf("expected 500ms, got %dms", got)
	}

	out, err := model.Generate(context.Background(), features)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	seq, ok := out.([]Transcript)
	if !ok || len(seq) != 1 {
		t.Fatalf("expected one-element sequence, got %#v", out)
	}
	if !strings.Contains(seq[0].Text(), "received 8000 samples") {
		t.Fatalf("unexpected text %q", seq[0].Text())
	}
	if seq[0].Language() != "en" {
		t.Fatalf("unexpected language %q", seq[0].Language())
	}
}

func TestStubModelRejectsEmptySamples(t *testing.T) {
	model := NewStubModel(discardLogger(), "org/model")
	if _, err := model.Features(nil); err == nil {
		t.Fatalf("expected error for empty samples")
	}
}

func TestStubModelHonoursCancellation(t *testing.T) {
	model := NewStubModel(discardLogger(), "org/model")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := model.Generate(ctx, Features{Samples: []float32{0}, SampleRate: SampleRate}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
