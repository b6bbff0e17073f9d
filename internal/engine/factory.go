package engine

import (
	"fmt"
	"log/slog"
	"strings"
)

// Backend names accepted by NewLoader.
const (
	BackendStub       = "stub"
	BackendWhisperCLI = "whispercli"
	BackendWhisperCPP = "whispercpp"
)

// DefaultWhisperBinary is the whisper.cpp CLI looked up on PATH.
const DefaultWhisperBinary = "whisper-cli"

// NewLoader returns the loader for backend. Backends whose native dependency
// is missing return an error wrapping ErrNativeEngineUnavailable; callers treat
// that as fatal.
func NewLoader(backend string, resolver ModelResolver, opts Options, logger *slog.Logger) (Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendStub:
		logger.Warn("stub engine forced by configuration")
		return NewStubLoader(logger), nil
	case BackendWhisperCLI, "":
		return NewCLILoader(resolver, opts, logger)
	case BackendWhisperCPP:
		if !NativeAvailable() {
			return nil, fmt.Errorf("%w: built without the whispercpp tag", ErrNativeEngineUnavailable)
		}
		return NewNativeLoader(resolver, opts, logger)
	default:
		return nil, fmt.Errorf("engine: unknown backend %q (supported: %s, %s, %s)",
			backend, BackendWhisperCLI, BackendWhisperCPP, BackendStub)
	}
}
