package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
	// File is an optional YAML/TOML config file; NUPI_CONFIG_FILE is used
	// when empty.
	File string
}

// Load retrieves the daemon configuration and validates it.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Default()
	cfg.CacheDir = DefaultCacheDir(l.Lookup)
	overrideString(l.Lookup, "HF_ENDPOINT", &cfg.DownloadBaseURL)
	overrideString(l.Lookup, "HF_TOKEN", &cfg.HubToken)

	file := strings.TrimSpace(l.File)
	if file == "" {
		file = lookupTrim(l.Lookup, "NUPI_CONFIG_FILE")
	}
	if file != "" {
		if err := LoadFile(file, &cfg); err != nil {
			return Config{}, err
		}
	}

	if raw, ok := l.Lookup("NUPI_MODULE_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(l.Lookup, "NUPI_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "NUPI_LOG_FORMAT", &cfg.LogFormat)
	overrideString(l.Lookup, "NUPI_STT_BACKEND", &cfg.Backend)
	overrideString(l.Lookup, "NUPI_MODEL_REPO", &cfg.ModelRepo)
	overrideString(l.Lookup, "NUPI_MODEL_FILE", &cfg.ModelFile)
	overrideString(l.Lookup, "NUPI_MODEL_CACHE_DIR", &cfg.CacheDir)
	overrideString(l.Lookup, "WHISPERCPP_BINARY", &cfg.WhisperBinary)
	overrideString(l.Lookup, "NUPI_LANGUAGE_HINT", &cfg.Language)
	overrideString(l.Lookup, "NUPI_HEALTH_ADDR", &cfg.HealthAddr)

	if err := overrideBool(l.Lookup, "NUPI_OFFLINE_FIRST", &cfg.OfflineFirst); err != nil {
		return Config{}, err
	}
	if err := overrideBool(l.Lookup, "NUPI_ONLINE_FALLBACK", &cfg.OnlineFallback); err != nil {
		return Config{}, err
	}
	if err := overrideInt(l.Lookup, "WHISPERCPP_THREADS", &cfg.Threads); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(l.Lookup, "NUPI_MODEL_LOAD_TIMEOUT", &cfg.LoadTimeout); err != nil {
		return Config{}, err
	}

	var offlineOnly bool
	if err := overrideBool(l.Lookup, "HF_HUB_OFFLINE", &offlineOnly); err != nil {
		return Config{}, err
	}
	if offlineOnly {
		cfg.OfflineFirst = true
		cfg.OnlineFallback = false
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value := lookupTrim(lookup, key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("config: %s: invalid boolean %q", key, value)
	}
	*target = parsed
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	value := lookupTrim(lookup, key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("config: %s: invalid integer %q", key, value)
	}
	*target = parsed
	return nil
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value := lookupTrim(lookup, key)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("config: %s: invalid duration %q", key, value)
	}
	*target = parsed
	return nil
}
