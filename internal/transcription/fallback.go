package transcription

import (
	"context"
	"errors"
	"log/slog"

	"glass/internal/logging"
	"glass/internal/services"
)

// Fallback tries Primary and switches to Secondary only when Primary is
// disqualified by a precondition.
type Fallback struct {
	Primary   Transcriber
	Secondary Transcriber
	Logger    *slog.Logger
}

// Name implements Transcriber.
func (f *Fallback) Name() string {
	return f.Primary.Name() + "+" + f.Secondary.Name()
}

// Transcribe implements Transcriber. When the fallback also fails, its error
// is returned joined with the disqualification.
func (f *Fallback) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	result, err := f.Primary.Transcribe(ctx, audioPath)
	if err == nil || !errors.Is(err, services.ErrDisqualified) {
		return result, err
	}

	logger := f.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	details := services.Details(err)
	logger.Info("transcription provider disqualified; falling back",
		logging.String(logging.FieldEventType, "transcription_fallback"),
		logging.String("primary", f.Primary.Name()),
		logging.String("fallback", f.Secondary.Name()),
		logging.String("reason", details.Message),
	)

	result, fallbackErr := f.Secondary.Transcribe(ctx, audioPath)
	if fallbackErr != nil {
		return Result{}, errors.Join(fallbackErr, err)
	}
	return result, nil
}
