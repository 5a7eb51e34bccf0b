package transcription

import (
	"context"
	"errors"
	"log/slog"

	"glass/internal/logging"
	"glass/internal/services"
	"glass/internal/services/whisperx"
)

// Local transcribes on-device with WhisperX.
type Local struct {
	svc    *whisperx.Service
	logger *slog.Logger
}

// NewLocal wraps a WhisperX service.
func NewLocal(svc *whisperx.Service, logger *slog.Logger) *Local {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Local{svc: svc, logger: logger}
}

// Name implements Transcriber.
func (l *Local) Name() string { return "whisperx" }

// Transcribe implements Transcriber.
func (l *Local) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	l.logger.Info("whisperx transcription started",
		logging.String("audio_path", audioPath),
		logging.String("model", l.svc.Model()),
		logging.Bool("cuda", l.svc.CUDAEnabled()),
	)
	transcript, err := l.svc.Transcribe(ctx, audioPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, errors.Join(ctxErr, err)
		}
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "Run whisperx", "transcription failed", err)
	}

	result := Result{Raw: transcript.Raw, Provider: l.Name()}
	for _, seg := range transcript.Segments {
		if s, ok := audioSegment(seg.Start, seg.End, seg.Text); ok {
			result.Segments = append(result.Segments, s)
		}
	}
	if len(result.Segments) == 0 {
		return Result{}, services.Wrap(services.ErrMalformed, stageName, "Parse whisperx output", "output did not contain any segments", nil)
	}
	l.logger.Info("whisperx transcription completed", logging.Int("segments", len(result.Segments)))
	return result, nil
}
