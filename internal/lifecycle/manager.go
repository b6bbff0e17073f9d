// Package lifecycle loads the inference model once at startup, preferring the
// local cache and falling back to a network load.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/engine"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/protocol"
)

// State is the model lifecycle state. Ready and Failed are terminal.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrLoadFailed marks a model that could not be loaded by any attempt.
var ErrLoadFailed = errors.New("lifecycle: model load failed")

// ErrAlreadyInitialized is returned by a second call to Initialize.
var ErrAlreadyInitialized = errors.New("lifecycle: already initialized")

// LoadError records the outcome of each load attempt. Its message is the last
// failure, which is what gets reported to the parent process.
type LoadError struct {
	Repo    string
	Offline error
	Online  error
}

func (e *LoadError) Error() string {
	if e.Online != nil {
		return e.Online.Error()
	}
	if e.Offline != nil {
		return e.Offline.Error()
	}
	return ErrLoadFailed.Error()
}

func (e *LoadError) Unwrap() []error {
	var errs []error
	if e.Offline != nil {
		errs = append(errs, e.Offline)
	}
	if e.Online != nil {
		errs = append(errs, e.Online)
	}
	return errs
}

func (e *LoadError) Is(target error) bool {
	return target == ErrLoadFailed
}

// Announcer publishes an unsolicited status line.
type Announcer func(status protocol.Status, message string)

// Options controls the load strategy.
type Options struct {
	Repo           string
	OfflineFirst   bool
	OnlineFallback bool
	// LoadTimeout bounds each attempt; zero means no limit.
	LoadTimeout time.Duration
}

// Manager owns the model for the lifetime of the process.
type Manager struct {
	loader   engine.Loader
	opts     Options
	announce Announcer
	log      *slog.Logger

	mu    sync.RWMutex
	state State
	model engine.Model
}

// NewManager constructs a Manager. A nil announcer discards announcements.
func NewManager(loader engine.Loader, opts Options, announce Announcer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if announce == nil {
		announce = func(protocol.Status, string) {}
	}
	return &Manager{
		loader:   loader,
		opts:     opts,
		announce: announce,
		log:      logger.With("component", "lifecycle", "model_repo", opts.Repo),
	}
}

// Initialize loads the model. With OfflineFirst the cached artefacts are tried
// first; on failure a warning is announced and, when OnlineFallback allows it,
// the load is retried with network access. The returned error wraps
// ErrLoadFailed when every attempt failed, or the context error when ctx was
// cancelled.
func (m *Manager) Initialize(ctx context.Context) (State, error) {
	m.mu.Lock()
	if m.state != StateUnloaded {
		state := m.state
		m.mu.Unlock()
		return state, ErrAlreadyInitialized
	}
	m.state = StateLoading
	m.mu.Unlock()

	model, err := m.load(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateFailed
		m.log.Error("model load failed", "error", err)
		return m.state, err
	}
	m.state = StateReady
	m.model = model
	return m.state, nil
}

func (m *Manager) load(ctx context.Context) (engine.Model, error) {
	m.announce(protocol.StatusLoading, fmt.Sprintf("Loading model %s...", m.opts.Repo))
	loadErr := &LoadError{Repo: m.opts.Repo}

	if m.opts.OfflineFirst {
		model, err := m.attempt(ctx, true)
		if err == nil {
			m.announce(protocol.StatusReady, "Model loaded offline successfully")
			return model, nil
		}
		loadErr.Offline = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.announce(protocol.StatusWarning, fmt.Sprintf("Offline loading failed: %v", err))
		if !m.opts.OnlineFallback {
			return nil, loadErr
		}
		m.announce(protocol.StatusLoading, "Falling back to online loading...")
	}

	model, err := m.attempt(ctx, false)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		loadErr.Online = err
		return nil, loadErr
	}
	m.announce(protocol.StatusReady, "Model loaded online successfully")
	return model, nil
}

func (m *Manager) attempt(ctx context.Context, offline bool) (engine.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.LoadTimeout)
		defer cancel()
	}

	started := time.Now()
	model, err := m.loader.Load(ctx, m.opts.Repo, offline)
	if err != nil {
		m.log.Warn("load attempt failed", "offline", offline, "error", err)
		return nil, err
	}
	if model == nil {
		return nil, fmt.Errorf("lifecycle: loader returned no model")
	}
	m.log.Info("model loaded", "offline", offline, "duration_ms", time.Since(started).Milliseconds())
	return model, nil
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Model returns the loaded model, or nil unless the state is Ready.
func (m *Manager) Model() engine.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// Close releases the model. The state is left unchanged.
func (m *Manager) Close() error {
	m.mu.Lock()
	model := m.model
	m.model = nil
	m.mu.Unlock()
	if model == nil {
		return nil
	}
	return model.Close()
}
