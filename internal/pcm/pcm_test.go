package pcm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name string, data []byte, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, perm); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadDecodesSamples(t *testing.T) {
	want := []float32{0, 0.5, -0.25, 1}
	path := writeFile(t, "clip.pcm", Encode(want), 0o644)

	buf, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if buf.Len() != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), buf.Len())
	}
	for i := range want {
		if buf.Samples[i] != want[i] {
			t.Fatalf("sample %d: want %v, got %v", i, want[i], buf.Samples[i])
		}
	}

	buf.Release()
	if buf.Len() != 0 {
		t.Fatal("expected samples released")
	}
}

func TestLoadIgnoresTrailingPartialSample(t *testing.T) {
	data := append(Encode([]float32{0.1, 0.2}), 0xff, 0xff)
	buf, err := Load(writeFile(t, "odd.pcm", data, 0o644))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if buf.Len() != 2 {
		t.Fatalf("expected 2 samples, got %d", buf.Len())
	}
}

func TestLoadDistinguishesFailures(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		path     string
		sentinel error
		reason   Reason
	}{
		{"missing", filepath.Join(dir, "nonexistent.pcm"), ErrNotFound, ReasonNotFound},
		{"empty", writeFile(t, "empty.pcm", nil, 0o644), ErrEmpty, ReasonEmpty},
		{"shorter than a sample", writeFile(t, "short.pcm", []byte{1, 2}, 0o644), ErrEmpty, ReasonEmpty},
		{"directory", dir, ErrUnreadable, ReasonUnreadable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("expected %v, got %v", tc.sentinel, err)
			}
			var pcmErr *Error
			if !errors.As(err, &pcmErr) || pcmErr.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %v", tc.reason, err)
			}
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	path := writeFile(t, "locked.pcm", Encode([]float32{1}), 0o000)

	_, err := Load(path)
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmpty) {
		t.Fatalf("unreadable error matched another reason: %v", err)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := map[Reason]string{
		ReasonNotFound:   "PCM file not found: /x.pcm",
		ReasonUnreadable: "Cannot read PCM file: /x.pcm",
		ReasonEmpty:      "PCM file is empty: /x.pcm",
	}
	for reason, want := range tests {
		err := &Error{Reason: reason, Path: "/x.pcm"}
		if err.Error() != want {
			t.Fatalf("Error() = %q, want %q", err.Error(), want)
		}
	}
}

func TestBufferDuration(t *testing.T) {
	buf := &Buffer{Samples: make([]float32, SampleRate/2)}
	if got := buf.Duration(); got != 500*time.Millisecond {
		t.Fatalf("Duration() = %v", got)
	}
	var nilBuf *Buffer
	if nilBuf.Duration() != 0 {
		t.Fatal("nil buffer should have zero duration")
	}
}
