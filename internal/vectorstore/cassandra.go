package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"glass/internal/config"
	"glass/internal/contextmodel"
)

const cassandraTable = `CREATE TABLE IF NOT EXISTS glass_contexts (
    context_type text,
    id text,
    payload text,
    vector list<float>,
    updated_at timestamp,
    PRIMARY KEY ((context_type), id)
)`

// Cassandra stores vector records in a Cassandra keyspace, one partition per
// semantic category.
type Cassandra struct {
	session *gocql.Session
}

// OpenCassandra connects to the cluster and ensures the table exists. The
// keyspace must already exist.
func OpenCassandra(ctx context.Context, cfg config.Cassandra) (*Cassandra, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.New("cassandra: at least one host required")
	}
	consistency, err := parseConsistency(cfg.Consistency)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = consistency
	cluster.Timeout = timeout
	cluster.ConnectTimeout = timeout

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to cassandra: %w", err)
	}
	if err := session.Query(cassandraTable).WithContext(ctx).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("create cassandra table: %w", err)
	}
	return &Cassandra{session: session}, nil
}

// Name identifies the backend.
func (c *Cassandra) Name() string { return "cassandra" }

// BatchUpsert writes each context with an idempotent INSERT. Cassandra
// inserts are upserts, so a partial failure is healed by resubmitting.
func (c *Cassandra) BatchUpsert(ctx context.Context, contextType contextmodel.ContextType, contexts []contextmodel.ProcessedContext) ([]string, error) {
	if err := validateBatch(contextType, contexts); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(contexts))
	now := time.Now().UTC()
	for _, pc := range contexts {
		payload, vector, err := encodePayload(pc)
		if err != nil {
			return nil, err
		}
		if err := c.session.Query(
			`INSERT INTO glass_contexts (context_type, id, payload, vector, updated_at) VALUES (?, ?, ?, ?, ?)`,
			string(contextType), pc.ID, payload, vector, now,
		).WithContext(ctx).Exec(); err != nil {
			return nil, fmt.Errorf("insert context %s: %w", pc.ID, err)
		}
		ids = append(ids, pc.ID)
	}
	return ids, nil
}

// Get loads one record.
func (c *Cassandra) Get(ctx context.Context, contextType contextmodel.ContextType, id string) (*contextmodel.ProcessedContext, error) {
	var (
		payload string
		vector  []float32
	)
	err := c.session.Query(
		`SELECT payload, vector FROM glass_contexts WHERE context_type = ? AND id = ?`,
		string(contextType), id,
	).WithContext(ctx).Scan(&payload, &vector)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get context %s: %w", id, err)
	}
	return decodePayload(payload, vector)
}

// Close shuts the session down.
func (c *Cassandra) Close() error {
	if c != nil && c.session != nil {
		c.session.Close()
	}
	return nil
}

func parseConsistency(value string) (gocql.Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "quorum":
		return gocql.Quorum, nil
	case "one":
		return gocql.One, nil
	case "local_quorum":
		return gocql.LocalQuorum, nil
	case "all":
		return gocql.All, nil
	default:
		return gocql.Any, fmt.Errorf("cassandra: unsupported consistency %q", value)
	}
}
