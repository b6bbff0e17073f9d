package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/adapterinfo"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/daemon"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/engine"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/health"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/telemetry"
)

const healthStopTimeout = 5 * time.Second

func runDaemon(cmd *cobra.Command, c *commandContext) error {
	cfg, logger, err := c.setup(cmd)
	if err != nil {
		return err
	}
	logger.Info("starting daemon",
		"version", adapterinfo.Version(),
		"backend", cfg.Backend,
		"model_repo", cfg.ModelRepo,
		"model_file", cfg.ModelFile,
		"cache_dir", cfg.CacheDir,
		"offline_first", cfg.OfflineFirst,
		"online_fallback", cfg.OnlineFallback,
		"language", cfg.Language,
	)

	var healthServer *health.Server
	if cfg.HealthAddr != "" {
		healthServer, err = health.Listen(cfg.HealthAddr, adapterinfo.HealthService(), logger)
		if err != nil {
			return err
		}
		defer healthServer.Stop(healthStopTimeout)
	}

	d := daemon.New(daemon.Options{
		Input:  cmd.InOrStdin(),
		Output: cmd.OutOrStdout(),
		NewLoader: func() (engine.Loader, error) {
			return newLoader(cfg, logger)
		},
		Load:     loadOptions(cfg),
		Recorder: telemetry.NewRecorder(logger),
		Health:   healthServer,
		Logger:   logger,
	})
	if err := d.Run(cmd.Context()); err != nil {
		logger.Error("daemon exited with error", "error", err)
		return err
	}
	logger.Info("daemon stopped")
	return nil
}
