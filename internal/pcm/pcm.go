// Package pcm loads raw, headerless little-endian float32 mono audio captured
// at 16 kHz by the parent process.
package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"
)

const (
	// SampleRate is the fixed capture rate of every PCM file.
	SampleRate = 16000
	// BytesPerSample is the size of one float32 sample.
	BytesPerSample = 4
)

// Reason classifies why a PCM file could not be loaded.
type Reason int

const (
	ReasonNotFound Reason = iota + 1
	ReasonUnreadable
	ReasonEmpty
)

func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "not_found"
	case ReasonUnreadable:
		return "unreadable"
	case ReasonEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

var (
	ErrNotFound   = errors.New("pcm: file not found")
	ErrUnreadable = errors.New("pcm: file not readable")
	ErrEmpty      = errors.New("pcm: file is empty")
)

// Error describes a load failure for a specific path.
type Error struct {
	Reason Reason
	Path   string
	Err    error
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonNotFound:
		return fmt.Sprintf("PCM file not found: %s", e.Path)
	case ReasonUnreadable:
		return fmt.Sprintf("Cannot read PCM file: %s", e.Path)
	case ReasonEmpty:
		return fmt.Sprintf("PCM file is empty: %s", e.Path)
	default:
		return fmt.Sprintf("PCM file error: %s", e.Path)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel corresponding to the failure reason.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Reason == ReasonNotFound
	case ErrUnreadable:
		return e.Reason == ReasonUnreadable
	case ErrEmpty:
		return e.Reason == ReasonEmpty
	}
	return false
}

// Buffer owns the samples of one request.
type Buffer struct {
	Samples []float32
}

// Len returns the number of samples held.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// Duration returns the audio length at SampleRate.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Len()) * time.Second / SampleRate
}

// Release drops the sample slice so it can be collected.
func (b *Buffer) Release() {
	if b != nil {
		b.Samples = nil
	}
}

// Load validates path and decodes its contents. A trailing partial sample is
// ignored; a file holding no complete sample is reported as empty.
func Load(path string) (*Buffer, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Reason: ReasonNotFound, Path: path, Err: err}
		}
		return nil, &Error{Reason: ReasonUnreadable, Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &Error{Reason: ReasonUnreadable, Path: path, Err: fmt.Errorf("%s is a directory", path)}
	}
	if !info.Mode().IsRegular() {
		return nil, &Error{Reason: ReasonUnreadable, Path: path, Err: fmt.Errorf("%s is not a regular file (%s)", path, info.Mode().Type())}
	}
	if err := checkReadable(path); err != nil {
		return nil, &Error{Reason: ReasonUnreadable, Path: path, Err: err}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Reason: ReasonNotFound, Path: path, Err: err}
		}
		return nil, &Error{Reason: ReasonUnreadable, Path: path, Err: err}
	}
	if len(raw) < BytesPerSample {
		return nil, &Error{Reason: ReasonEmpty, Path: path, Err: fmt.Errorf("%d bytes", len(raw))}
	}

	return &Buffer{Samples: Decode(raw)}, nil
}

// Decode converts little-endian float32 bytes into samples.
func Decode(raw []byte) []float32 {
	n := len(raw) / BytesPerSample
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*BytesPerSample:]))
	}
	return samples
}

// Encode converts samples into little-endian float32 bytes.
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*BytesPerSample:], math.Float32bits(s))
	}
	return out
}
