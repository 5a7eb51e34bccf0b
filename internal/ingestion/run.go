package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"glass/internal/extract"
	"glass/internal/fileutil"
	"glass/internal/logging"
	"glass/internal/manifest"
	"glass/internal/services"
)

const (
	manifestFileName      = "alignment_manifest.json"
	rawTranscriptFileName = "transcription_raw.json"
	cancelReason          = "ingestion canceled"
	detachedWriteTimeout  = 10 * time.Second
)

// Ingest runs the whole pipeline for source and returns the new manifest.
// An empty timelineID is derived from the file; a rerun of a completed or
// failed timeline replaces its previous result.
func (m *Manager) Ingest(ctx context.Context, source, timelineID string) (*manifest.Manifest, error) {
	abs, timelineID, err := resolveRequest(source, timelineID)
	if err != nil {
		return nil, err
	}
	release, err := m.claim(timelineID)
	if err != nil {
		return nil, err
	}
	defer release()
	return m.execute(ctx, abs, timelineID)
}

// resolveRequest returns the absolute source path and the timeline id,
// deriving the id from the file when none is given.
func resolveRequest(source, timelineID string) (string, string, error) {
	abs, _, err := statSource(source)
	if err != nil {
		return "", "", err
	}
	timelineID = strings.TrimSpace(timelineID)
	if timelineID == "" {
		if timelineID, err = DeriveTimelineID(abs); err != nil {
			return "", "", err
		}
	} else if err := ValidateTimelineID(timelineID); err != nil {
		return "", "", err
	}
	return abs, timelineID, nil
}

// execute runs a timeline the caller has already claimed.
func (m *Manager) execute(ctx context.Context, abs, timelineID string) (*manifest.Manifest, error) {
	ctx = services.WithTimelineID(ctx, timelineID)
	logger := logging.WithContext(ctx, m.logger)

	if _, err := m.store.Enqueue(ctx, timelineID, abs); err != nil {
		return nil, fmt.Errorf("enqueue timeline: %w", err)
	}
	if err := m.store.MarkProcessing(ctx, timelineID); err != nil {
		return nil, fmt.Errorf("claim timeline: %w", err)
	}
	logger.Info("ingestion started",
		logging.String(logging.FieldEventType, "ingestion_start"),
		logging.String("source", abs),
		logging.String(logging.FieldProvider, m.transcriber.Name()),
	)

	started := time.Now()
	result, err := m.run(ctx, logger, timelineID, abs)
	if err != nil {
		return nil, m.handleFailure(ctx, logger, timelineID, err)
	}
	logger.Info("ingestion completed",
		logging.String(logging.FieldEventType, "ingestion_complete"),
		logging.Int("segments", result.Len()),
		logging.Int("frames", result.Count(manifest.KindFrame)),
		logging.Int("utterances", result.Count(manifest.KindAudio)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (m *Manager) run(ctx context.Context, logger *slog.Logger, timelineID, source string) (*manifest.Manifest, error) {
	workDir := m.cfg.TimelineDir(timelineID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingestion", "Prepare work dir", workDir, err)
	}

	stageLogger := logging.WithStage(logger, "extraction")
	stageLogger.Debug("extracting frames and audio", logging.Float64("frame_rate", m.cfg.Ingestion.FrameRate))
	extracted, err := m.extractor.Extract(services.WithStage(ctx, "extraction"), source, workDir, m.cfg.Ingestion.FrameRate)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	frames, err := extract.Segments(extracted)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	stageLogger.Info("extraction completed", logging.Int("frames", len(frames)))

	stageLogger = logging.WithStage(logger, "transcription")
	transcript, err := m.transcriber.Transcribe(services.WithStage(ctx, "transcription"), extracted.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	if len(transcript.Raw) > 0 {
		if err := writeArtifact(filepath.Join(workDir, rawTranscriptFileName), transcript.Raw); err != nil {
			stageLogger.Warn("raw transcript not saved", logging.Error(err))
		}
	}
	stageLogger.Info("transcription completed",
		logging.String(logging.FieldProvider, transcript.Provider),
		logging.Int("utterances", len(transcript.Segments)),
	)

	segments := make([]manifest.Segment, 0, len(frames)+len(transcript.Segments))
	segments = append(segments, frames...)
	segments = append(segments, transcript.Segments...)
	aligned, err := manifest.New(timelineID, source, segments)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformed, "alignment", "Build manifest", "", err)
	}

	items, err := m.assembler.BuildItems(services.WithStage(ctx, "assembly"), aligned)
	if err != nil {
		return nil, fmt.Errorf("assembly: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := m.persister.PersistTimeline(services.WithStage(ctx, "persistence"), aligned, items, transcript.Provider); err != nil {
		return nil, fmt.Errorf("persistence: %w", err)
	}

	if data, err := aligned.MarshalIndent(); err == nil {
		if err := writeArtifact(filepath.Join(workDir, manifestFileName), data); err != nil {
			logger.Warn("manifest artifact not saved", logging.Error(err))
		}
	}
	if !m.cfg.Ingestion.KeepArtifacts {
		m.removeScratch(logger, workDir, extracted.AudioPath)
	}
	return aligned, nil
}

// handleFailure records the outcome of a failed or canceled run and returns
// the error the caller should see.
func (m *Manager) handleFailure(ctx context.Context, logger *slog.Logger, timelineID string, runErr error) error {
	// Status writes must land even when ctx is what ended the run.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedWriteTimeout)
	defer cancel()

	if ctx.Err() != nil || errors.Is(runErr, context.Canceled) {
		if err := m.store.Release(writeCtx, timelineID, cancelReason); err != nil {
			logger.Error("failed to release canceled timeline", logging.Error(err))
		}
		logger.Info("ingestion canceled", logging.String(logging.FieldEventType, "ingestion_canceled"))
		return services.Wrap(services.ErrCanceled, "ingestion", "Run", cancelReason, runErr)
	}

	details := services.Details(runErr)
	message := strings.TrimSpace(runErr.Error())
	if err := m.store.MarkFailed(writeCtx, timelineID, string(details.Kind), message); err != nil {
		logger.Error("failed to persist ingestion failure", logging.Error(err))
	}
	logging.ErrorWithContext(logger, "ingestion failed", "ingestion_failure",
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String("error_operation", details.Operation),
		logging.String("error_code", details.Code),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Error(runErr),
	)
	return runErr
}

func (m *Manager) removeScratch(logger *slog.Logger, workDir, audioPath string) {
	for _, path := range []string{audioPath, filepath.Join(workDir, "whisperx")} {
		if path == "" {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			logger.Debug("scratch cleanup failed", logging.String("path", path), logging.Error(err))
		}
	}
}

func writeArtifact(path string, data []byte) error {
	return fileutil.WriteFileVerified(path, data, 0o644)
}
