package transcription

import (
	"context"
	"log/slog"

	"glass/internal/logging"
	"glass/internal/services"
	"glass/internal/services/auc"
)

// Remote transcribes with the AUC speech API.
type Remote struct {
	client *auc.Client
	logger *slog.Logger
}

// NewRemote wraps an AUC client.
func NewRemote(client *auc.Client, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Remote{client: client, logger: logger}
}

// Name implements Transcriber.
func (r *Remote) Name() string { return r.client.Name() }

// Transcribe implements Transcriber. Precondition failures surface as
// services.ErrDisqualified before any upload happens.
func (r *Remote) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	recognition, err := r.client.Recognize(ctx, audioPath)
	if err != nil {
		return Result{}, err
	}
	result := Result{Raw: recognition.Raw, Provider: r.Name()}
	for _, u := range recognition.Utterances {
		if s, ok := audioSegment(u.Start, u.End, u.Text); ok {
			result.Segments = append(result.Segments, s)
		}
	}
	if len(result.Segments) == 0 {
		return Result{}, services.WrapWithCode(services.ErrMalformed, stageName, "Parse utterances",
			"no utterance survived normalization", "request_id="+recognition.RequestID, nil)
	}
	r.logger.Info("remote transcription completed",
		logging.Int("segments", len(result.Segments)),
		logging.String("request_id", recognition.RequestID),
	)
	return result, nil
}
