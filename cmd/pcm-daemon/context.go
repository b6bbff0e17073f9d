package main

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/config"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/engine"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/lifecycle"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/logging"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/models"
)

// errReported marks failures whose output has already been written.
var errReported = errors.New("failure already reported")

type flagValues struct {
	configFile    string
	backend       string
	modelRepo     string
	modelFile     string
	cacheDir      string
	language      string
	whisperBinary string
	threads       int
	offline       bool
	logLevel      string
	logFormat     string
	healthAddr    string
}

type commandContext struct {
	lookup func(string) (string, bool)
	flags  flagValues
}

func newCommandContext(lookup func(string) (string, bool)) *commandContext {
	return &commandContext{lookup: lookup}
}

func (c *commandContext) bindFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&c.flags.configFile, "config", "c", "", "Configuration file path (.yaml, .yml or .toml)")
	f.StringVar(&c.flags.backend, "backend", "", "Inference backend: whispercli, whispercpp or stub")
	f.StringVar(&c.flags.modelRepo, "model-repo", "", "Model repository on the hub")
	f.StringVar(&c.flags.modelFile, "model-file", "", "Model file within the repository")
	f.StringVar(&c.flags.cacheDir, "cache-dir", "", "Model cache directory")
	f.StringVar(&c.flags.language, "language", "", "Language hint, or auto")
	f.StringVar(&c.flags.whisperBinary, "whisper-binary", "", "whisper.cpp CLI executable")
	f.IntVar(&c.flags.threads, "threads", 0, "Inference threads (0 = backend default)")
	f.BoolVar(&c.flags.offline, "offline", false, "Only use cached models, never download")
	f.StringVar(&c.flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	f.StringVar(&c.flags.logFormat, "log-format", "", "Log format: auto, text or json")
	f.StringVar(&c.flags.healthAddr, "health-addr", "", "Serve gRPC health checks on this address")
}

// loadConfig resolves configuration with command line flags taking precedence
// over the environment.
func (c *commandContext) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Loader{Lookup: c.lookup, File: c.flags.configFile}.Load()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	override := func(name string, target *string, value string) {
		if flags.Changed(name) {
			*target = value
		}
	}
	override("backend", &cfg.Backend, c.flags.backend)
	override("model-repo", &cfg.ModelRepo, c.flags.modelRepo)
	override("model-file", &cfg.ModelFile, c.flags.modelFile)
	override("cache-dir", &cfg.CacheDir, c.flags.cacheDir)
	override("language", &cfg.Language, c.flags.language)
	override("whisper-binary", &cfg.WhisperBinary, c.flags.whisperBinary)
	override("log-level", &cfg.LogLevel, c.flags.logLevel)
	override("log-format", &cfg.LogFormat, c.flags.logFormat)
	override("health-addr", &cfg.HealthAddr, c.flags.healthAddr)
	if flags.Changed("threads") {
		cfg.Threads = c.flags.threads
	}
	if flags.Changed("offline") && c.flags.offline {
		cfg.OfflineFirst = true
		cfg.OnlineFallback = false
	}
	if strings.TrimSpace(cfg.CacheDir) == "" {
		cfg.CacheDir = config.DefaultCacheDir(c.lookup)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (c *commandContext) setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newCache(cfg config.Config, logger *slog.Logger) (*models.Cache, error) {
	return models.NewCache(cfg.CacheDir, cfg.DownloadBaseURL, logger, models.WithToken(cfg.HubToken))
}

func newLoader(cfg config.Config, logger *slog.Logger) (engine.Loader, error) {
	cache, err := newCache(cfg, logger)
	if err != nil {
		return nil, err
	}
	return engine.NewLoader(cfg.Backend, cache, engine.Options{
		Language:  cfg.Language,
		Threads:   cfg.Threads,
		Binary:    cfg.WhisperBinary,
		ModelFile: cfg.ModelFile,
	}, logger)
}

func loadOptions(cfg config.Config) lifecycle.Options {
	return lifecycle.Options{
		Repo:           cfg.ModelRepo,
		OfflineFirst:   cfg.OfflineFirst,
		OnlineFallback: cfg.OnlineFallback,
		LoadTimeout:    cfg.LoadTimeout,
	}
}
