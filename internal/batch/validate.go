package batch

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"voicebatch/internal/config"
	"voicebatch/internal/filetask"
	"voicebatch/internal/logging"
	"voicebatch/internal/services"
)

// Validate checks every request before any work is dispatched. Unknown
// models are accepted with a warning.
func Validate(requests []filetask.Request, logger *slog.Logger) error {
	if len(requests) == 0 {
		return services.Wrap(services.ErrValidation, "validation", "check requests", "no files to process", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	warned := make(map[string]bool)
	for i, req := range requests {
		label := req.Source
		if label == "" {
			label = fmt.Sprintf("request %d", i+1)
		}
		if err := checkSource(req); err != nil {
			return services.Wrap(services.ErrValidation, "validation", "check input", label, err)
		}
		if err := config.ValidateVoice(req.Voice); err != nil {
			return services.Wrap(services.ErrValidation, "validation", "check voice settings", label, err)
		}
		if model := req.Voice.Model; !config.IsKnownModel(model) && !warned[model] {
			warned[model] = true
			logging.WarnWithContext(logger, "model not in the built-in catalogue, sending as given", "unknown_model",
				logging.String("model", model),
				logging.String(logging.FieldErrorHint, "check the model name against the MiniMax model list"),
			)
		}
	}
	return nil
}

func checkSource(req filetask.Request) error {
	if strings.TrimSpace(req.TextFileID) != "" || strings.TrimSpace(req.Text) != "" {
		return nil
	}
	if strings.TrimSpace(req.Source) == "" {
		return fmt.Errorf("no source file or text")
	}
	info, err := os.Stat(req.Source)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", req.Source)
	}
	return nil
}
