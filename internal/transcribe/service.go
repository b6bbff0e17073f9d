// Package transcribe turns a request naming a PCM file into a response,
// converting every failure into an error response.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/engine"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/logging"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/pcm"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/protocol"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/result"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/telemetry"
)

// MissingPathMessage is the error message for a request without pcm_path.
const MissingPathMessage = "Missing 'pcm_path' in request"

var (
	errMissingPath = errors.New("transcribe: missing pcm_path")
	errNoModel     = errors.New("transcribe: model not loaded")
)

// Service transcribes PCM files with a loaded model.
type Service struct {
	model    engine.Model
	recorder *telemetry.Recorder
	log      *slog.Logger

	loadPCM func(path string) (*pcm.Buffer, error)
}

// NewService returns a Service bound to model. The recorder may be nil.
func NewService(model engine.Model, recorder *telemetry.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		model:    model,
		recorder: recorder,
		log:      logger.With("component", "transcribe"),
		loadPCM:  pcm.Load,
	}
}

// Transcribe handles one transcription request. It never panics; engine
// panics are recovered and reported with the goroutine stack as detail.
func (s *Service) Transcribe(ctx context.Context, req protocol.Request) (resp protocol.Response) {
	path := strings.TrimSpace(req.PCMPath)
	requestID, _ := logging.RequestID(ctx)
	metrics := s.recorder.StartRequest(requestID, path)

	if path == "" {
		metrics.Finish(errMissingPath)
		return protocol.Failure(MissingPathMessage, "")
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("transcription panicked: %v", r)
			logging.WithContext(ctx, s.log).Error("engine panic", "error", err)
			metrics.Finish(err)
			resp = protocol.Failure(err.Error(), string(debug.Stack()))
		}
	}()

	canonical, err := s.run(ctx, path, metrics)
	if err != nil {
		metrics.Finish(err)
		return protocol.Failure(err.Error(), Detail(err))
	}
	metrics.RecordTranscript(canonical.Text)
	metrics.Finish(nil)
	return protocol.Success(canonical.Text, canonical.Language, canonical.Confidence)
}

func (s *Service) run(ctx context.Context, path string, metrics *telemetry.RequestMetrics) (result.Canonical, error) {
	if s.model == nil {
		return result.Canonical{}, errNoModel
	}

	buf, err := s.loadPCM(path)
	if err != nil {
		return result.Canonical{}, err
	}
	defer buf.Release()
	metrics.RecordSamples(buf.Len())

	features, err := s.model.Features(buf.Samples)
	if err != nil {
		return result.Canonical{}, fmt.Errorf("feature extraction failed: %w", err)
	}

	started := time.Now()
	raw, err := s.model.Generate(ctx, features)
	metrics.RecordInference(time.Since(started))
	if err != nil {
		return result.Canonical{}, fmt.Errorf("inference failed: %w", err)
	}

	canonical, err := result.Normalize(raw)
	if err != nil {
		return result.Canonical{}, err
	}
	logging.WithContext(ctx, s.log).Debug("transcribed",
		"shape", canonical.Shape.String(),
		"duration", buf.Duration(),
		"language", canonical.Language,
	)
	return canonical, nil
}

// Detail renders the error chain, outermost first, one error per line.
func Detail(err error) string {
	var b strings.Builder
	for depth := 0; err != nil; depth++ {
		if depth > 0 {
			b.WriteByte('\n')
			b.WriteString(strings.Repeat("  ", depth))
		}
		fmt.Fprintf(&b, "%T: %v", err, err)
		err = errors.Unwrap(err)
	}
	return b.String()
}
