// Package daemon runs the request loop: announce startup, load the model,
// then answer one JSON line per input line until end of input, a shutdown
// command or a termination signal.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/adapterinfo"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/engine"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/health"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/lifecycle"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/logging"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/protocol"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/telemetry"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/transcribe"
)

// ErrStartup wraps every failure that prevents the daemon from listening.
var ErrStartup = errors.New("daemon: startup failed")

// State is the process lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateListening
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options wires the daemon to its streams and collaborators.
type Options struct {
	Input  io.Reader
	Output io.Writer
	// NewLoader builds the engine loader; an error here is fatal.
	NewLoader func() (engine.Loader, error)
	Load      lifecycle.Options
	Recorder  *telemetry.Recorder
	// Health may be nil when the endpoint is disabled.
	Health *health.Server
	Logger *slog.Logger
}

// Daemon serves transcription requests over a line-delimited JSON stream.
type Daemon struct {
	opts    Options
	emitter *protocol.Emitter
	reader  *protocol.LineReader
	log     *slog.Logger
	state   atomic.Int32
}

// New constructs a Daemon.
func New(opts Options) *Daemon {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Daemon{
		opts:    opts,
		emitter: protocol.NewEmitter(opts.Output),
		reader:  protocol.NewLineReader(opts.Input),
		log:     opts.Logger.With("component", "daemon"),
	}
}

// State reports the current process state.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

func (d *Daemon) setState(s State) {
	d.state.Store(int32(s))
	d.log.Debug("daemon state", "state", s.String())
}

// Run executes the daemon until the input ends, a shutdown command arrives or
// ctx is cancelled. Cancellation never interrupts a request in flight; it is
// observed between requests. A nil error means a clean stop. Errors wrapping
// ErrStartup mean the model never became ready and no request was served.
func (d *Daemon) Run(ctx context.Context) error {
	d.setState(StateStarting)
	if err := d.emitter.Announce(protocol.StatusStarting, adapterinfo.Info.Name+" starting..."); err != nil {
		return err
	}

	manager, err := d.initialize(ctx)
	if err != nil {
		if ctx.Err() != nil {
			d.log.Info("interrupted during startup")
			d.emitter.Announce(protocol.StatusShutdown, "Daemon shutting down")
			return d.stop(nil)
		}
		d.emitter.Emit(protocol.Failure(fmt.Sprintf("Failed to load model: %v", err), transcribe.Detail(err)))
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	service := transcribe.NewService(manager.Model(), d.opts.Recorder, d.opts.Logger)
	dispatcher := NewDispatcher(service, d.opts.Recorder, d.opts.Logger)

	d.setState(StateListening)
	d.opts.Health.SetServing(true)
	if err := d.emitter.Announce(protocol.StatusListening, "Daemon ready for requests"); err != nil {
		return err
	}

	serveErr := d.serve(ctx, dispatcher)
	if err := manager.Close(); err != nil {
		d.log.Warn("failed to close model", "error", err)
	}
	return d.stop(serveErr)
}

func (d *Daemon) initialize(ctx context.Context) (*lifecycle.Manager, error) {
	if d.opts.NewLoader == nil {
		return nil, errors.New("daemon: no engine loader configured")
	}
	loader, err := d.opts.NewLoader()
	if err != nil {
		return nil, err
	}
	announce := func(status protocol.Status, message string) {
		if err := d.emitter.Announce(status, message); err != nil {
			d.log.Warn("failed to announce", "status", status, "error", err)
		}
	}
	manager := lifecycle.NewManager(loader, d.opts.Load, announce, d.opts.Logger)
	if _, err := manager.Initialize(ctx); err != nil {
		return nil, err
	}
	return manager, nil
}

type line struct {
	text string
	err  error
}

func (d *Daemon) serve(ctx context.Context, dispatcher *Dispatcher) error {
	lines := make(chan line)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			text, err := d.reader.Next()
			select {
			case lines <- line{text: text, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return d.signalled()
		case in := <-lines:
			if ctx.Err() != nil {
				return d.signalled()
			}
			if in.err != nil {
				d.setState(StateShuttingDown)
				if errors.Is(in.err, io.EOF) {
					d.log.Info("input closed")
					return nil
				}
				return fmt.Errorf("daemon: read request: %w", in.err)
			}

			reqCtx := logging.WithRequestID(context.WithoutCancel(ctx), uuid.NewString())
			resp, decision := dispatcher.Handle(reqCtx, in.text)
			if err := d.emitter.Emit(resp); err != nil {
				d.setState(StateShuttingDown)
				return err
			}
			if decision == Stop {
				d.setState(StateShuttingDown)
				return nil
			}
		}
	}
}

func (d *Daemon) signalled() error {
	d.setState(StateShuttingDown)
	d.log.Info("termination signal received")
	return d.emitter.Announce(protocol.StatusShutdown, "Daemon shutting down")
}

func (d *Daemon) stop(cause error) error {
	d.setState(StateShuttingDown)
	d.opts.Health.SetServing(false)
	d.opts.Recorder.LogSummary()
	d.setState(StateStopped)
	if err := d.emitter.Announce(protocol.StatusStopped, "Daemon stopped"); err != nil && cause == nil {
		return err
	}
	return cause
}
