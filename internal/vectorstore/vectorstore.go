// Package vectorstore stores processed contexts keyed by semantic category.
//
// Backends batch writes per category and return one id per input context.
// Callers must not assume the returned ids line up with anything but the
// contexts of that one batch.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"glass/internal/config"
	"glass/internal/contextmodel"
)

// Store is the vector store contract consumed by the repository.
type Store interface {
	Name() string
	// BatchUpsert writes contexts of one category and returns their ids in
	// input order.
	BatchUpsert(ctx context.Context, contextType contextmodel.ContextType, contexts []contextmodel.ProcessedContext) ([]string, error)
	// Get returns nil, nil when the record is absent.
	Get(ctx context.Context, contextType contextmodel.ContextType, id string) (*contextmodel.ProcessedContext, error)
	Close() error
}

// ErrMissingID reports a context submitted without an id.
var ErrMissingID = errors.New("vector store: context id required")

// Open builds the backend selected in configuration.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("vector store: config is nil")
	}
	switch cfg.VectorStore.Backend {
	case config.VectorBackendCassandra:
		return OpenCassandra(ctx, cfg.VectorStore.Cassandra)
	case config.VectorBackendSQLite, "":
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		return OpenSQLite(ctx, cfg.VectorDatabasePath())
	default:
		return nil, fmt.Errorf("vector store: unknown backend %q", cfg.VectorStore.Backend)
	}
}

func validateBatch(contextType contextmodel.ContextType, contexts []contextmodel.ProcessedContext) error {
	if strings.TrimSpace(string(contextType)) == "" {
		return errors.New("vector store: context type required")
	}
	for i, c := range contexts {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("%w (index %d)", ErrMissingID, i)
		}
		if c.Type() != contextType {
			return fmt.Errorf("vector store: context %s has type %q, batch is %q", c.ID, c.Type(), contextType)
		}
	}
	return nil
}

// encodePayload splits a context into its JSON document without the vector
// and the vector itself.
func encodePayload(c contextmodel.ProcessedContext) (string, []float32, error) {
	vector := c.Vectorize.Vector
	c.Vectorize.Vector = nil
	data, err := json.Marshal(c)
	if err != nil {
		return "", nil, fmt.Errorf("encode context %s: %w", c.ID, err)
	}
	return string(data), vector, nil
}

func decodePayload(payload string, vector []float32) (*contextmodel.ProcessedContext, error) {
	var c contextmodel.ProcessedContext
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	if len(vector) > 0 {
		c.Vectorize.Vector = vector
	}
	return &c, nil
}
