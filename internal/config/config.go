package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultBackend         = "whispercli"
	DefaultModelRepo       = "ggerganov/whisper.cpp"
	DefaultModelFile       = "ggml-base.bin"
	DefaultDownloadBaseURL = "https://huggingface.co"
	DefaultWhisperBinary   = "whisper-cli"
	DefaultLanguage        = "auto"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "auto"
	DefaultLoadTimeout     = 10 * time.Minute
)

var (
	backends   = []string{"whispercli", "whispercpp", "stub"}
	logFormats = []string{"auto", "text", "console", "json"}
)

// Config captures daemon configuration assembled from defaults, an optional
// config file, the injected JSON payload (`NUPI_MODULE_CONFIG`), environment
// variables and command line flags.
type Config struct {
	Backend         string
	ModelRepo       string
	ModelFile       string
	CacheDir        string
	DownloadBaseURL string
	// HubToken authenticates downloads of gated repositories.
	HubToken string
	// OfflineFirst tries the local cache before any network access.
	OfflineFirst bool
	// OnlineFallback allows a download when the offline attempt fails.
	OnlineFallback bool
	WhisperBinary  string
	Language       string
	Threads        int
	LogLevel       string
	LogFormat      string
	// HealthAddr enables the gRPC health endpoint when set.
	HealthAddr  string
	LoadTimeout time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:         DefaultBackend,
		ModelRepo:       DefaultModelRepo,
		ModelFile:       DefaultModelFile,
		DownloadBaseURL: DefaultDownloadBaseURL,
		OfflineFirst:    true,
		OnlineFallback:  true,
		WhisperBinary:   DefaultWhisperBinary,
		Language:        DefaultLanguage,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		LoadTimeout:     DefaultLoadTimeout,
	}
}

// Validate applies defaults, checks required fields, and rejects out-of-range
// values.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if !contains(backends, c.Backend) {
		return fmt.Errorf("config: unknown backend %q (want one of %s)", c.Backend, strings.Join(backends, ", "))
	}
	if strings.TrimSpace(c.ModelRepo) == "" {
		return fmt.Errorf("config: model repo is required")
	}
	if c.ModelFile == "" {
		c.ModelFile = DefaultModelFile
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir(nil)
	}
	if c.DownloadBaseURL == "" {
		c.DownloadBaseURL = DefaultDownloadBaseURL
	}
	c.DownloadBaseURL = strings.TrimRight(c.DownloadBaseURL, "/")
	if c.WhisperBinary == "" {
		c.WhisperBinary = DefaultWhisperBinary
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if !contains(logFormats, c.LogFormat) {
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if c.Threads < 0 {
		return fmt.Errorf("config: threads must be >= 0, got %d", c.Threads)
	}
	if c.LoadTimeout < 0 {
		return fmt.Errorf("config: load timeout must be >= 0, got %s", c.LoadTimeout)
	}
	if c.LoadTimeout == 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}
	if !c.OfflineFirst && !c.OnlineFallback {
		return fmt.Errorf("config: offline_first and online_fallback cannot both be disabled")
	}
	return nil
}

// DefaultCacheDir mirrors the Hugging Face hub cache resolution order. A nil
// lookup skips the environment and falls back to the user home directory.
func DefaultCacheDir(lookup func(string) (string, bool)) string {
	if dir := lookupTrim(lookup, "HF_HUB_CACHE"); dir != "" {
		return dir
	}
	if home := lookupTrim(lookup, "HF_HOME"); home != "" {
		return filepath.Join(home, "hub")
	}
	if xdg := lookupTrim(lookup, "XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "huggingface", "hub")
	}
	if home := lookupTrim(lookup, "HOME"); home != "" {
		return filepath.Join(home, ".cache", "huggingface", "hub")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "huggingface", "hub")
	}
	return filepath.Join(os.TempDir(), "huggingface", "hub")
}

func lookupTrim(lookup func(string) (string, bool), key string) string {
	if lookup == nil {
		return ""
	}
	value, ok := lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
