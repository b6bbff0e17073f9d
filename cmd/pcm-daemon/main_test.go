package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/daemon"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/models"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/pcm"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/protocol"
)

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, env map[string]string, stdin string, args ...string) cliResult {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	if _, ok := env["NUPI_MODEL_CACHE_DIR"]; !ok {
		env["NUPI_MODEL_CACHE_DIR"] = t.TempDir()
	}
	env["NUPI_LOG_FORMAT"] = "json"

	cmd := newRootCommand(func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	})
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writePCM(t *testing.T, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.pcm")
	if err := os.WriteFile(path, pcm.Encode(make([]float32, samples)), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	res := runCLI(t, nil, "", "version")
	if res.err != nil {
		t.Fatalf("version error: %v", res.err)
	}
	if res.stdout != "pcm-daemon 0.3.0\n" {
		t.Fatalf("unexpected version output %q", res.stdout)
	}
}

func TestDaemonWithStubBackend(t *testing.T) {
	path := writePCM(t, 320)
	stdin := `{"command":"ping"}` + "\n" + fmt.Sprintf(`{"pcm_path":%q}`, path) + "\n" + `{"command":"shutdown"}` + "\n"
	res := runCLI(t, nil, stdin, "--backend", "stub")
	if res.err != nil {
		t.Fatalf("daemon error: %v (stderr: %s)", res.err, res.stderr)
	}

	var got []string
	for _, line := range strings.Split(strings.TrimSpace(res.stdout), "\n") {
		var resp protocol.Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("invalid output line %q: %v", line, err)
		}
		got = append(got, string(resp.Status))
	}
	if strings.Join(got, ",") != "starting,loading,ready,listening,pong,success,shutdown,stopped" {
		t.Fatalf("unexpected status sequence %v", got)
	}
	if !strings.Contains(res.stderr, "starting daemon") {
		t.Fatalf("expected logs on stderr, got %q", res.stderr)
	}
}

func TestDaemonFatalWhenModelUnavailable(t *testing.T) {
	env := map[string]string{"HF_HUB_OFFLINE": "1"}
	res := runCLI(t, env, `{"command":"ping"}`+"\n",
		"--backend", "whispercli", "--whisper-binary", filepath.Join(t.TempDir(), "missing-cli"))
	if !errors.Is(res.err, daemon.ErrStartup) {
		t.Fatalf("expected startup failure, got %v", res.err)
	}
	if strings.Contains(res.stdout, `"pong"`) {
		t.Fatalf("no request may be served after a fatal startup error: %s", res.stdout)
	}
	if !strings.Contains(res.stdout, `"status":"error"`) {
		t.Fatalf("expected error line, got %s", res.stdout)
	}
}

func TestTranscribeCommand(t *testing.T) {
	path := writePCM(t, 1600)
	res := runCLI(t, nil, "", "transcribe", "--backend", "stub", path)
	if res.err != nil {
		t.Fatalf("transcribe error: %v", res.err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(res.stdout), &out); err != nil {
		t.Fatalf("invalid output %q: %v", res.stdout, err)
	}
	if out["success"] != true || out["language"] != "en" {
		t.Fatalf("unexpected output %v", out)
	}
	if !strings.Contains(out["text"].(string), "received 1600 samples") {
		t.Fatalf("unexpected text %v", out["text"])
	}
	if _, ok := out["error"]; ok {
		t.Fatalf("unexpected error key in %v", out)
	}
}

func TestTranscribeCommandFailure(t *testing.T) {
	res := runCLI(t, nil, "", "transcribe", "--backend", "stub", "/nonexistent.pcm")
	if !errors.Is(res.err, errReported) {
		t.Fatalf("expected reported failure, got %v", res.err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(res.stdout), &out); err != nil {
		t.Fatalf("invalid output %q: %v", res.stdout, err)
	}
	if out["success"] != false || out["text"] != "" || out["language"] != nil || out["confidence"] != nil {
		t.Fatalf("unexpected output %v", out)
	}
	if !strings.HasPrefix(out["error"].(string), "PCM file not found") {
		t.Fatalf("unexpected error %v", out["error"])
	}
}

func TestFetchAndCacheCommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/org/model/resolve/main/ggml-tiny.bin" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "model-bytes")
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	env := map[string]string{"HF_ENDPOINT": srv.URL, "NUPI_MODEL_CACHE_DIR": cacheDir}

	res := runCLI(t, env, "", "cache")
	if res.err != nil || !strings.Contains(res.stdout, "No cached models") {
		t.Fatalf("expected empty cache listing, got %q %v", res.stdout, res.err)
	}

	res = runCLI(t, env, "", "fetch", "--offline", "--model-repo", "org/model", "--model-file", "ggml-tiny.bin")
	if !errors.Is(res.err, models.ErrNotCached) {
		t.Fatalf("expected ErrNotCached when offline, got %v", res.err)
	}

	res = runCLI(t, env, "", "fetch", "--model-repo", "org/model", "--model-file", "ggml-tiny.bin")
	if res.err != nil {
		t.Fatalf("fetch error: %v", res.err)
	}
	want := filepath.Join(cacheDir, "models--org--model", "snapshots", "main", "ggml-tiny.bin")
	if strings.TrimSpace(res.stdout) != want {
		t.Fatalf("unexpected fetch output %q, want %q", res.stdout, want)
	}

	res = runCLI(t, env, "", "cache")
	if res.err != nil {
		t.Fatalf("cache error: %v", res.err)
	}
	for _, fragment := range []string{"REPOSITORY", "org/model", "ggml-tiny.bin", "11 B"} {
		if !strings.Contains(res.stdout, fragment) {
			t.Fatalf("cache listing missing %q:\n%s", fragment, res.stdout)
		}
	}
}

func TestFetchUsesInjectedEnvironment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer hf_secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, "gated")
	}))
	defer srv.Close()

	hubCache := t.TempDir()
	env := map[string]string{
		"HF_ENDPOINT":          srv.URL,
		"HF_TOKEN":             "hf_secret",
		"HF_HUB_CACHE":         hubCache,
		"NUPI_MODEL_CACHE_DIR": "",
	}

	res := runCLI(t, env, "", "fetch", "--cache-dir", "", "--model-repo", "org/gated", "--model-file", "m.bin")
	if res.err != nil {
		t.Fatalf("fetch error: %v\n%s", res.err, res.stderr)
	}
	want := filepath.Join(hubCache, "models--org--gated", "snapshots", "main", "m.bin")
	if strings.TrimSpace(res.stdout) != want {
		t.Fatalf("unexpected fetch output %q, want %q", res.stdout, want)
	}
}

func TestInvalidConfigurationIsRejected(t *testing.T) {
	res := runCLI(t, nil, "", "--backend", "onnx")
	if res.err == nil || !strings.Contains(res.err.Error(), "unknown backend") {
		t.Fatalf("expected backend error, got %v", res.err)
	}
	if res.stdout != "" {
		t.Fatalf("expected no protocol output, got %q", res.stdout)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{147951465, "141.1 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Fatalf("formatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
