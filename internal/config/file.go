package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// overlay is the partial configuration accepted from config files and the
// NUPI_MODULE_CONFIG payload. Unset fields leave the current value untouched.
type overlay struct {
	Backend         string `json:"backend" yaml:"backend" toml:"backend"`
	ModelRepo       string `json:"model_repo" yaml:"model_repo" toml:"model_repo"`
	ModelFile       string `json:"model_file" yaml:"model_file" toml:"model_file"`
	CacheDir        string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	DownloadBaseURL string `json:"download_base_url" yaml:"download_base_url" toml:"download_base_url"`
	OfflineFirst    *bool  `json:"offline_first" yaml:"offline_first" toml:"offline_first"`
	OnlineFallback  *bool  `json:"online_fallback" yaml:"online_fallback" toml:"online_fallback"`
	WhisperBinary   string `json:"whisper_binary" yaml:"whisper_binary" toml:"whisper_binary"`
	Language        string `json:"language" yaml:"language" toml:"language"`
	Threads         *int   `json:"threads" yaml:"threads" toml:"threads"`
	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat       string `json:"log_format" yaml:"log_format" toml:"log_format"`
	HealthAddr      string `json:"health_addr" yaml:"health_addr" toml:"health_addr"`
	LoadTimeout     string `json:"load_timeout" yaml:"load_timeout" toml:"load_timeout"`
}

// LoadFile applies a YAML or TOML config file on top of cfg. The format is
// chosen by extension.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var payload overlay
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config: unsupported config file extension %q", ext)
	}
	return payload.apply(cfg)
}

func applyJSON(raw string, cfg *Config) error {
	var payload overlay
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode NUPI_MODULE_CONFIG: %w", err)
	}
	return payload.apply(cfg)
}

func (o overlay) apply(cfg *Config) error {
	setString(&cfg.Backend, o.Backend)
	setString(&cfg.ModelRepo, o.ModelRepo)
	setString(&cfg.ModelFile, o.ModelFile)
	setString(&cfg.CacheDir, o.CacheDir)
	setString(&cfg.DownloadBaseURL, o.DownloadBaseURL)
	setString(&cfg.WhisperBinary, o.WhisperBinary)
	setString(&cfg.Language, o.Language)
	setString(&cfg.LogLevel, o.LogLevel)
	setString(&cfg.LogFormat, o.LogFormat)
	setString(&cfg.HealthAddr, o.HealthAddr)
	if o.OfflineFirst != nil {
		cfg.OfflineFirst = *o.OfflineFirst
	}
	if o.OnlineFallback != nil {
		cfg.OnlineFallback = *o.OnlineFallback
	}
	if o.Threads != nil {
		cfg.Threads = *o.Threads
	}
	if v := strings.TrimSpace(o.LoadTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: load_timeout: %w", err)
		}
		cfg.LoadTimeout = d
	}
	return nil
}

func setString(target *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*target = v
	}
}
