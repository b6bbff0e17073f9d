package telemetry

import (
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Recorder tracks daemon-level request telemetry.
type Recorder struct {
	log *slog.Logger

	totalRequests  atomic.Uint64
	activeRequests atomic.Int64
	totalPings     atomic.Uint64
	totalSuccesses atomic.Uint64
	totalFailures  atomic.Uint64
	totalSamples   atomic.Uint64
	inferenceNanos atomic.Int64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalRequests  uint64
	ActiveRequests int64
	TotalPings     uint64
	TotalSuccesses uint64
	TotalFailures  uint64
	TotalSamples   uint64
	InferenceTime  time.Duration
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log: logger.With("component", "telemetry.Recorder"),
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalRequests:  r.totalRequests.Load(),
		ActiveRequests: r.activeRequests.Load(),
		TotalPings:     r.totalPings.Load(),
		TotalSuccesses: r.totalSuccesses.Load(),
		TotalFailures:  r.totalFailures.Load(),
		TotalSamples:   r.totalSamples.Load(),
		InferenceTime:  time.Duration(r.inferenceNanos.Load()),
	}
}

// RecordPing counts a liveness ping.
func (r *Recorder) RecordPing() {
	if r == nil {
		return
	}
	r.totalPings.Add(1)
}

// LogSummary writes the cumulative totals at info level.
func (r *Recorder) LogSummary() {
	if r == nil {
		return
	}
	s := r.Snapshot()
	r.log.Info("daemon telemetry",
		"requests", s.TotalRequests,
		"pings", s.TotalPings,
		"successes", s.TotalSuccesses,
		"failures", s.TotalFailures,
		"samples", s.TotalSamples,
		"inference_ms", s.InferenceTime.Milliseconds(),
	)
}

// RequestMetrics accumulates statistics for a single transcription request.
type RequestMetrics struct {
	recorder *Recorder
	log      *slog.Logger

	started   time.Time
	samples   int
	inference time.Duration
	chars     int
	runes     int
	closed    atomic.Bool
}

// StartRequest initialises a RequestMetrics instance bound to the recorder.
func (r *Recorder) StartRequest(requestID, pcmPath string) *RequestMetrics {
	if r == nil {
		return nil
	}

	r.totalRequests.Add(1)
	r.activeRequests.Add(1)

	return &RequestMetrics{
		recorder: r,
		log: r.log.With(
			"request_id", requestID,
			"pcm_path", pcmPath,
		),
		started: time.Now(),
	}
}

// RecordSamples stores the number of decoded PCM samples.
func (m *RequestMetrics) RecordSamples(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.samples += n
	m.recorder.totalSamples.Add(uint64(n))
	m.log.Debug("pcm loaded", "samples", n)
}

// RecordInference stores time spent inside the model.
func (m *RequestMetrics) RecordInference(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.inference += d
	m.recorder.inferenceNanos.Add(int64(d))
}

// RecordTranscript stores statistics for the produced text.
func (m *RequestMetrics) RecordTranscript(text string) {
	if m == nil {
		return
	}
	m.chars = len(text)
	m.runes = utf8.RuneCountInString(text)
}

// Finish logs a summary and updates outcome counters. Calls after the first
// are ignored.
func (m *RequestMetrics) Finish(err error) {
	if m == nil {
		return
	}
	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	defer m.recorder.activeRequests.Add(-1)

	args := []any{
		"duration_ms", time.Since(m.started).Milliseconds(),
		"inference_ms", m.inference.Milliseconds(),
		"samples", m.samples,
		"chars", m.chars,
		"runes", m.runes,
	}

	if err != nil {
		m.recorder.totalFailures.Add(1)
		m.log.Warn("request failed", append(args, "error", err)...)
		return
	}

	m.recorder.totalSuccesses.Add(1)
	m.log.Info("request completed", args...)
}
