package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ModelResolver locates model artefacts, downloading them unless offline.
type ModelResolver interface {
	Resolve(ctx context.Context, repo, file string, offline bool) (string, error)
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// CLILoader loads models served by the whisper.cpp command line tool.
type CLILoader struct {
	resolver ModelResolver
	opts     Options
	log      *slog.Logger
	runner   CommandRunner
}

// NewCLILoader verifies the whisper.cpp binary is available and returns a loader.
func NewCLILoader(resolver ModelResolver, opts Options, logger *slog.Logger) (*CLILoader, error) {
	if resolver == nil {
		return nil, errors.New("engine: model resolver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = DefaultWhisperBinary
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: whisper.cpp binary %q: %v", ErrNativeEngineUnavailable, binary, err)
	}
	opts.Binary = resolved
	if strings.TrimSpace(opts.ModelFile) == "" {
		return nil, errors.New("engine: model file is required")
	}
	return &CLILoader{
		resolver: resolver,
		opts:     opts,
		log:      logger.With("component", "engine.whispercli", "binary", resolved),
		runner:   runCommand,
	}, nil
}

// WithCommandRunner sets a custom command runner (for testing).
func (l *CLILoader) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		l.runner = runner
	}
}

// Load implements Loader.
func (l *CLILoader) Load(ctx context.Context, repo string, offline bool) (Model, error) {
	path, err := l.resolver.Resolve(ctx, repo, l.opts.ModelFile, offline)
	if err != nil {
		return nil, err
	}
	l.log.Info("model resolved", "repo", repo, "path", path, "offline", offline)
	return &CLIModel{
		modelPath: path,
		opts:      l.opts,
		log:       l.log.With("model_path", path),
		runner:    l.runner,
	}, nil
}

// CLIModel transcribes by invoking whisper.cpp once per request.
type CLIModel struct {
	modelPath string
	opts      Options
	log       *slog.Logger
	runner    CommandRunner
}

// Features implements Model.
func (m *CLIModel) Features(samples []float32) (Features, error) {
	return sampleFeatures(samples)
}

// Generate writes the samples to a temporary WAV file, runs whisper.cpp with
// JSON output and returns a mapping with "text" and "language" keys.
func (m *CLIModel) Generate(ctx context.Context, features Features) (any, error) {
	workDir, err := os.MkdirTemp("", "pcm-daemon-*")
	if err != nil {
		return nil, fmt.Errorf("engine: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	wavPath := filepath.Join(workDir, "input.wav")
	if err := writeWAV(wavPath, features); err != nil {
		return nil, err
	}

	outPrefix := filepath.Join(workDir, "output")
	args := []string{
		"-m", m.modelPath,
		"-f", wavPath,
		"-l", languageHint(m.opts.Language),
		"-oj",
		"-of", outPrefix,
		"-np",
		"-nt",
	}
	if m.opts.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(m.opts.Threads))
	}

	if err := m.runner(ctx, m.opts.Binary, args...); err != nil {
		return nil, fmt.Errorf("engine: whisper.cpp: %w", err)
	}

	raw, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("engine: read whisper.cpp output: %w", err)
	}
	return parseCLIOutput(raw)
}

// Close implements Model.
func (m *CLIModel) Close() error {
	return nil
}

type cliOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseCLIOutput(raw []byte) (map[string]any, error) {
	var out cliOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("engine: decode whisper.cpp output: %w", err)
	}
	parts := make([]string, 0, len(out.Transcription))
	for _, segment := range out.Transcription {
		if text := strings.TrimSpace(segment.Text); text != "" && !strings.EqualFold(text, "[BLANK_AUDIO]") {
			parts = append(parts, text)
		}
	}
	result := map[string]any{"text": strings.Join(parts, " ")}
	if lang := strings.TrimSpace(out.Result.Language); lang != "" {
		result["language"] = lang
	}
	return result, nil
}

func writeWAV(path string, features Features) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("engine: create wav: %w", err)
	}
	defer f.Close()

	rate := features.SampleRate
	if rate <= 0 {
		rate = SampleRate
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  rate,
		},
		Data:           make([]int, len(features.Samples)),
		SourceBitDepth: 16,
	}
	for i, s := range features.Samples {
		buf.Data[i] = floatToPCM16(s)
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("engine: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("engine: finalise wav: %w", err)
	}
	return nil
}

func floatToPCM16(s float32) int {
	switch {
	case math.IsNaN(float64(s)):
		return 0
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	default:
		return int(s * 32767)
	}
}

func languageHint(lang string) string {
	if trimmed := strings.ToLower(strings.TrimSpace(lang)); trimmed != "" {
		return trimmed
	}
	return "auto"
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 2048 {
			detail = detail[len(detail)-2048:]
		}
		if detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
		return err
	}
	return nil
}
