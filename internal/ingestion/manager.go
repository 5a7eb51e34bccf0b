package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"glass/internal/assembly"
	"glass/internal/config"
	"glass/internal/contextmodel"
	"glass/internal/extract"
	"glass/internal/logging"
	"glass/internal/manifest"
	"glass/internal/repository"
	"glass/internal/store"
	"glass/internal/transcription"
)

// Assembler turns a manifest into context items.
type Assembler interface {
	BuildItems(ctx context.Context, m *manifest.Manifest) ([]contextmodel.Item, error)
}

// Persister stores a completed run.
type Persister interface {
	PersistTimeline(ctx context.Context, m *manifest.Manifest, items []contextmodel.Item, transcriber string) ([]string, error)
}

// Manager coordinates ingestion runs.
type Manager struct {
	cfg         *config.Config
	store       *store.Store
	persister   Persister
	extractor   extract.Extractor
	transcriber transcription.Transcriber
	assembler   Assembler
	logger      *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}

	pool *semaphore.Weighted
	wg   sync.WaitGroup
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithExtractor overrides the ffmpeg extractor.
func WithExtractor(extractor extract.Extractor) Option {
	return func(m *Manager) { m.extractor = extractor }
}

// WithTranscriber overrides the configured transcription provider.
func WithTranscriber(transcriber transcription.Transcriber) Option {
	return func(m *Manager) { m.transcriber = transcriber }
}

// WithAssembler overrides the default assembly builder.
func WithAssembler(assembler Assembler) Option {
	return func(m *Manager) { m.assembler = assembler }
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager constructs a manager. Collaborators not supplied through
// options are built from cfg.
func NewManager(cfg *config.Config, st *store.Store, repo *repository.Repository, opts ...Option) (*Manager, error) {
	if cfg == nil || st == nil || repo == nil {
		return nil, errors.New("ingestion: config, store and repository are required")
	}
	return newManager(cfg, st, repo, opts...)
}

func newManager(cfg *config.Config, st *store.Store, persister Persister, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:       cfg,
		store:     st,
		persister: persister,
		logger:    logging.NewNop(),
		active:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "ingestion")

	if m.extractor == nil {
		m.extractor = extract.NewFFmpeg(cfg.Ingestion.FFmpegBinary)
	}
	if m.transcriber == nil {
		transcriber, err := transcription.FromConfig(cfg, m.logger)
		if err != nil {
			return nil, err
		}
		m.transcriber = transcriber
	}
	if m.assembler == nil {
		m.assembler = assembly.NewBuilder(cfg.Chunking.MaxChunkSize, assembly.WithLogger(m.logger))
	}

	workers := cfg.Ingestion.MaxConcurrency
	if workers <= 0 {
		workers = 1
	}
	m.pool = semaphore.NewWeighted(int64(workers))

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}
	return m, nil
}

// Wait blocks until every submitted run has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}
