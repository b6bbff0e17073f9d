package adapterinfo

import "testing"

func TestMetadata(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		if Version() == "" {
			t.Fatal("Version() returned empty string")
		}
		if Version() != Info.Version {
			t.Fatalf("Version() mismatch: got %q want %q", Version(), Info.Version)
		}
	})

	if Info.BinaryName != "pcm-daemon" {
		t.Fatalf("unexpected binary name: %q", Info.BinaryName)
	}
	if got, want := HealthService(), "nupi.stt-pcm-daemon"; got != want {
		t.Fatalf("HealthService() = %q, want %q", got, want)
	}
}
