package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SampleRate is the rate every backend expects its input samples at.
const SampleRate = 16000

// ErrNativeEngineUnavailable indicates that a backend's native dependency is
// missing from this build or host.
var ErrNativeEngineUnavailable = errors.New("engine: native backend unavailable")

// Loader loads a model identified by a repository name. With offline set the
// loader must only use locally cached artefacts.
type Loader interface {
	Load(ctx context.Context, repo string, offline bool) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, repo string, offline bool) (Model, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, repo string, offline bool) (Model, error) {
	return f(ctx, repo, offline)
}

// Model is a loaded, read-only inference model. Generate may return any of
// the shapes understood by the result package.
type Model interface {
	Features(samples []float32) (Features, error)
	Generate(ctx context.Context, features Features) (any, error)
	Close() error
}

// Features is the model input derived from a PCM buffer.
type Features struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the audio length represented by the features.
func (f Features) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Options configures decoding for the whisper backends.
type Options struct {
	// Language is a decoding hint; "auto" or empty enables detection.
	Language string
	// Threads caps inference threads; zero lets the backend decide.
	Threads int
	// Binary is the whisper.cpp CLI executable used by the whispercli backend.
	Binary string
	// ModelFile names the artefact fetched from the model repository.
	ModelFile string
}

// sampleFeatures is the feature extractor shared by backends that consume raw
// samples directly.
func sampleFeatures(samples []float32) (Features, error) {
	if len(samples) == 0 {
		return Features{}, fmt.Errorf("engine: no samples to transcribe")
	}
	return Features{Samples: samples, SampleRate: SampleRate}, nil
}

// Transcript is the single-object result produced by the bundled backends.
type Transcript struct {
	Body  string
	Lang  string
	Score float64
}

// Text returns the transcript body.
func (t Transcript) Text() string { return t.Body }

// Language returns the detected language code.
func (t Transcript) Language() string { return t.Lang }

// Confidence returns the mean token probability.
func (t Transcript) Confidence() float64 { return t.Score }
