package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"glass/internal/assembly"
	"glass/internal/config"
	"glass/internal/ingestion"
	"glass/internal/repository"
	"glass/internal/services/embedding"
	"glass/internal/store"
	"glass/internal/timeline"
	"glass/internal/vectorstore"
)

// runtime holds the wired pipeline for one command invocation.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	vectors vectorstore.Store
	repo    *repository.Repository
	source  *timeline.Source
	manager *ingestion.Manager
}

func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	vectors, err := vectorstore.Open(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	builderOpts := []assembly.Option{assembly.WithLogger(logger)}
	if cfg.Embedding.Enabled {
		builderOpts = append(builderOpts, assembly.WithEmbedder(embedding.NewClient(embedding.Config{
			Enabled:        cfg.Embedding.Enabled,
			APIKey:         cfg.Embedding.APIKey,
			BaseURL:        cfg.Embedding.BaseURL,
			Model:          cfg.Embedding.Model,
			TimeoutSeconds: cfg.Embedding.TimeoutSeconds,
		})))
	}
	builder := assembly.NewBuilder(cfg.Chunking.MaxChunkSize, builderOpts...)

	rt := &runtime{cfg: cfg, logger: logger, store: st, vectors: vectors}
	rt.repo, err = repository.New(st, vectors, repository.WithAssembler(builder), repository.WithLogger(logger))
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.source = timeline.NewSource(rt.repo, logger)
	rt.manager, err = ingestion.NewManager(cfg, st, rt.repo,
		ingestion.WithAssembler(builder),
		ingestion.WithLogger(logger),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.manager != nil {
		r.manager.Wait()
	}
	var errs []error
	if r.vectors != nil {
		errs = append(errs, r.vectors.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if err := errors.Join(errs...); err != nil && r.logger != nil {
		r.logger.Warn("close stores", slog.String("error", err.Error()))
	}
}
