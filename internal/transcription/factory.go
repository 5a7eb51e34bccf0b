package transcription

import (
	"fmt"
	"log/slog"
	"strings"

	"glass/internal/config"
	"glass/internal/logging"
	"glass/internal/media/ffprobe"
	"glass/internal/services"
	"glass/internal/services/auc"
	"glass/internal/services/whisperx"
)

// FromConfig builds the transcriber selected by speech_to_text.provider.
func FromConfig(cfg *config.Config, logger *slog.Logger) (Transcriber, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "transcription")
	stt := cfg.SpeechToText

	local := NewLocal(whisperx.NewService(whisperx.Config{
		Model:       stt.Local.Model,
		CUDAEnabled: stt.Local.CUDAEnabled,
		VADMethod:   stt.Local.VADMethod,
		HFToken:     stt.Local.HFToken,
		Language:    stt.Local.Language,
	}), logger)

	switch strings.ToLower(strings.TrimSpace(stt.Provider)) {
	case config.ProviderLocal:
		return local, nil
	case config.ProviderRemote:
		client := auc.NewClient(auc.Config{
			BaseURL:             stt.Remote.BaseURL,
			AppKey:              stt.Remote.AppKey,
			AccessKey:           stt.Remote.AccessKey,
			ResourceID:          stt.Remote.ResourceID,
			ModelName:           stt.Remote.ModelName,
			ConnectTimeout:      cfg.RemoteConnectTimeout(),
			RequestTimeout:      cfg.RemoteRequestTimeout(),
			MaxFileSize:         int64(stt.Remote.MaxFileSizeMB) << 20,
			RecommendedFileSize: int64(stt.Remote.RecommendedFileSizeMB) << 20,
			MaxDuration:         cfg.RemoteMaxDuration(),
		},
			auc.WithLogger(logger),
			auc.WithProbe(cfg.Ingestion.FFprobeBinary, ffprobe.Inspect),
		)
		return &Fallback{Primary: NewRemote(client, logger), Secondary: local, Logger: logger}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "Select provider", fmt.Sprintf("unknown provider %q", stt.Provider), nil)
	}
}
