package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/adapterinfo"
)

// StubLoader produces models that return deterministic transcripts without
// running inference. Setting OfflineErr or OnlineErr simulates load failures.
type StubLoader struct {
	Log        *slog.Logger
	OfflineErr error
	OnlineErr  error

	loads atomic.Int32
}

// NewStubLoader returns a StubLoader that always succeeds.
func NewStubLoader(logger *slog.Logger) *StubLoader {
	return &StubLoader{Log: logger}
}

// Load implements Loader.
func (l *StubLoader) Load(ctx context.Context, repo string, offline bool) (Model, error) {
	l.loads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offline && l.OfflineErr != nil {
		return nil, l.OfflineErr
	}
	if !offline && l.OnlineErr != nil {
		return nil, l.OnlineErr
	}
	return NewStubModel(l.Log, repo), nil
}

// Loads reports how many load attempts were made.
func (l *StubLoader) Loads() int {
	return int(l.loads.Load())
}

// StubModel answers every request with a description of the received audio.
type StubModel struct {
	log  *slog.Logger
	repo string
}

// NewStubModel returns a StubModel labelled with repo.
func NewStubModel(logger *slog.Logger, repo string) *StubModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubModel{
		log: logger.With(
			"component", "engine.stub",
			"daemon", adapterinfo.Info.Slug,
			"model_repo", repo,
		),
		repo: repo,
	}
}

// Features implements Model.
func (m *StubModel) Features(samples []float32) (Features, error) {
	return sampleFeatures(samples)
}

// Generate implements Model and returns a one-element sequence.
func (m *StubModel) Generate(ctx context.Context, features Features) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := fmt.Sprintf("[stub:%s] received %d samples", m.repo, len(features.Samples))
	m.log.Debug("stub transcript", "samples", len(features.Samples), "duration", features.Duration())
	return []Transcript{{Body: text, Lang: "en", Score: 0.42}}, nil
}

// Close implements Model.
func (m *StubModel) Close() error {
	return nil
}
