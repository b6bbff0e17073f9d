//go:build !whispercpp

package engine

import "log/slog"

// NativeAvailable reports whether the native whisper backend is compiled in.
func NativeAvailable() bool { return false }

// NewNativeLoader returns an error when the native backend is not built.
func NewNativeLoader(ModelResolver, Options, *slog.Logger) (Loader, error) {
	return nil, ErrNativeEngineUnavailable
}
