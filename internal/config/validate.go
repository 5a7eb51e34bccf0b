package config

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

// Validate ensures the configuration is usable. Remote credentials are not
// required here: a missing key disqualifies the remote provider at run time
// and ingestion falls back to local transcription.
func (c *Config) Validate() error {
	validators := []struct {
		section string
		fn      func() error
	}{
		{"paths", c.validatePaths},
		{"ingestion", c.validateIngestion},
		{"speech_to_text", c.validateSpeechToText},
		{"embedding", c.validateEmbedding},
		{"vector_store", c.validateVectorStore},
		{"chunking", c.validateChunking},
		{"api", c.validateAPI},
		{"logging", c.validateLogging},
	}
	for _, v := range validators {
		if err := v.fn(); err != nil {
			return fmt.Errorf("%s: %w", v.section, err)
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	return validation.ValidateStruct(&c.Paths,
		validation.Field(&c.Paths.DataDir, validation.Required),
	)
}

func (c *Config) validateIngestion() error {
	return validation.ValidateStruct(&c.Ingestion,
		validation.Field(&c.Ingestion.MaxConcurrency, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.Ingestion.FrameRate, validation.Required, validation.Min(0.001)),
		validation.Field(&c.Ingestion.FFmpegBinary, validation.Required),
		validation.Field(&c.Ingestion.FFprobeBinary, validation.Required),
	)
}

func (c *Config) validateSpeechToText() error {
	stt := &c.SpeechToText
	if err := validation.ValidateStruct(stt,
		validation.Field(&stt.Provider, validation.Required, validation.In(ProviderLocal, ProviderRemote)),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&stt.Local,
		validation.Field(&stt.Local.Model, validation.Required),
		validation.Field(&stt.Local.VADMethod, validation.In("silero", "pyannote")),
	); err != nil {
		return fmt.Errorf("local: %w", err)
	}
	remote := &stt.Remote
	if err := validation.ValidateStruct(remote,
		validation.Field(&remote.BaseURL, validation.Required, is.URL),
		validation.Field(&remote.ResourceID, validation.Required),
		validation.Field(&remote.ConnectTimeoutSeconds, validation.Required, validation.Min(1)),
		validation.Field(&remote.RequestTimeoutSeconds, validation.Required, validation.Min(1)),
		validation.Field(&remote.MaxFileSizeMB, validation.Required, validation.Min(1)),
		validation.Field(&remote.RecommendedFileSizeMB, validation.Min(0), validation.Max(remote.MaxFileSizeMB)),
		validation.Field(&remote.MaxDurationSeconds, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	if !c.Embedding.Enabled {
		return nil
	}
	return validation.ValidateStruct(&c.Embedding,
		validation.Field(&c.Embedding.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Embedding.Model, validation.Required),
		validation.Field(&c.Embedding.TimeoutSeconds, validation.Required, validation.Min(1)),
	)
}

func (c *Config) validateVectorStore() error {
	vs := &c.VectorStore
	if err := validation.ValidateStruct(vs,
		validation.Field(&vs.Backend, validation.Required, validation.In(VectorBackendSQLite, VectorBackendCassandra)),
	); err != nil {
		return err
	}
	if vs.Backend != VectorBackendCassandra {
		return nil
	}
	cass := &vs.Cassandra
	if err := validation.ValidateStruct(cass,
		validation.Field(&cass.Hosts, validation.Required),
		validation.Field(&cass.Keyspace, validation.Required, validation.Match(keyspacePattern)),
		validation.Field(&cass.Consistency, validation.In("one", "quorum", "local_quorum", "all")),
		validation.Field(&cass.TimeoutSeconds, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("cassandra: %w", err)
	}
	return nil
}

func (c *Config) validateChunking() error {
	return validation.ValidateStruct(&c.Chunking,
		validation.Field(&c.Chunking.MaxChunkSize, validation.Required, validation.Min(16)),
	)
}

func (c *Config) validateAPI() error {
	return validation.ValidateStruct(&c.API,
		validation.Field(&c.API.Bind, validation.Required),
	)
}

func (c *Config) validateLogging() error {
	return validation.ValidateStruct(&c.Logging,
		validation.Field(&c.Logging.Format, validation.In("console", "json")),
		validation.Field(&c.Logging.Level, validation.In("debug", "info", "warn", "error")),
	)
}
