package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/lifecycle"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/protocol"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/telemetry"
	"github.com/nupi-ai/plugin-stt-pcm-daemon/internal/transcribe"
)

// oneShotResult is the single JSON object printed by the transcribe command.
type oneShotResult struct {
	Text       string   `json:"text"`
	Success    bool     `json:"success"`
	Language   *string  `json:"language"`
	Confidence *float64 `json:"confidence"`
	Error      string   `json:"error,omitempty"`
}

func newTranscribeCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <pcm-file>",
		Short: "Transcribe one raw float32 16 kHz mono PCM file and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.setup(cmd)
			if err != nil {
				return err
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetEscapeHTML(false)
			fail := func(err error) error {
				if encErr := out.Encode(oneShotResult{Error: err.Error()}); encErr != nil {
					return encErr
				}
				return errReported
			}

			loader, err := newLoader(cfg, logger)
			if err != nil {
				return fail(err)
			}
			announce := func(status protocol.Status, message string) {
				logger.Info(message, "status", status)
			}
			manager := lifecycle.NewManager(loader, loadOptions(cfg), announce, logger)
			if _, err := manager.Initialize(cmd.Context()); err != nil {
				return fail(fmt.Errorf("Failed to load model: %w", err))
			}
			defer manager.Close()

			service := transcribe.NewService(manager.Model(), telemetry.NewRecorder(logger), logger)
			resp := service.Transcribe(cmd.Context(), protocol.Request{PCMPath: args[0]})
			if resp.Status != protocol.StatusSuccess {
				if resp.Traceback != "" {
					logger.Debug("transcription failed", "detail", resp.Traceback)
				}
				return fail(errors.New(resp.Message))
			}

			result := oneShotResult{
				Text:       resp.TextValue(),
				Success:    true,
				Confidence: resp.Confidence,
			}
			if resp.Language != "" {
				lang := resp.Language
				result.Language = &lang
			}
			return out.Encode(result)
		},
	}
}
