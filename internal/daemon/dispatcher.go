package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/logging"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/protocol"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/telemetry"
)

// Decision tells the read loop whether to keep serving after a response.
type Decision int

const (
	Continue Decision = iota
	Stop
)

// Transcriber serves transcription requests.
type Transcriber interface {
	Transcribe(ctx context.Context, req protocol.Request) protocol.Response
}

// Dispatcher routes a raw input line to the matching handler.
type Dispatcher struct {
	transcriber Transcriber
	recorder    *telemetry.Recorder
	log         *slog.Logger
}

// NewDispatcher returns a Dispatcher. The recorder may be nil.
func NewDispatcher(transcriber Transcriber, recorder *telemetry.Recorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		transcriber: transcriber,
		recorder:    recorder,
		log:         logger.With("component", "dispatcher"),
	}
}

// Handle decodes raw and produces exactly one response. Only the shutdown
// command stops the loop; every failure is reported and serving continues.
func (d *Dispatcher) Handle(ctx context.Context, raw string) (protocol.Response, Decision) {
	log := logging.WithContext(ctx, d.log)

	req, err := protocol.DecodeRequest([]byte(raw))
	if err != nil {
		log.Warn("invalid request line", "error", err)
		return protocol.Failure(fmt.Sprintf("Invalid JSON: %v", err), ""), Continue
	}

	switch req.Command {
	case protocol.CommandPing:
		d.recorder.RecordPing()
		return protocol.Notice(protocol.StatusPong, "Daemon is alive"), Continue
	case protocol.CommandShutdown:
		log.Info("shutdown requested")
		return protocol.Notice(protocol.StatusShutdown, "Shutting down gracefully"), Stop
	}

	if req.Command != "" {
		log.Debug("unknown command treated as transcription", "command", req.Command)
	}
	return d.transcriber.Transcribe(ctx, req), Continue
}
