package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIngestion()
	c.normalizeSpeechToText()
	c.normalizeEmbedding()
	c.normalizeVectorStore()
	c.normalizeLogging()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeIngestion() {
	c.Ingestion.FFmpegBinary = strings.TrimSpace(c.Ingestion.FFmpegBinary)
	if c.Ingestion.FFmpegBinary == "" {
		c.Ingestion.FFmpegBinary = defaultFFmpegBinary
	}
	c.Ingestion.FFprobeBinary = strings.TrimSpace(c.Ingestion.FFprobeBinary)
	if c.Ingestion.FFprobeBinary == "" {
		c.Ingestion.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeSpeechToText() {
	stt := &c.SpeechToText
	stt.Provider = strings.ToLower(strings.TrimSpace(stt.Provider))
	if stt.Provider == "" {
		stt.Provider = defaultProvider
	}

	stt.Local.Model = strings.TrimSpace(stt.Local.Model)
	if stt.Local.Model == "" {
		stt.Local.Model = defaultWhisperXModel
	}
	stt.Local.VADMethod = strings.ToLower(strings.TrimSpace(stt.Local.VADMethod))
	if stt.Local.VADMethod == "" {
		stt.Local.VADMethod = defaultWhisperXVADMethod
	}
	stt.Local.HFToken = strings.TrimSpace(stt.Local.HFToken)
	if stt.Local.HFToken == "" {
		stt.Local.HFToken = envValue(EnvHFToken)
	}
	stt.Local.Language = strings.TrimSpace(stt.Local.Language)

	remote := &stt.Remote
	remote.BaseURL = strings.TrimRight(strings.TrimSpace(remote.BaseURL), "/")
	if remote.BaseURL == "" {
		remote.BaseURL = defaultRemoteBaseURL
	}
	remote.AppKey = strings.TrimSpace(remote.AppKey)
	if remote.AppKey == "" {
		remote.AppKey = envValue(EnvSTTAppKey)
	}
	remote.AccessKey = strings.TrimSpace(remote.AccessKey)
	if remote.AccessKey == "" {
		remote.AccessKey = envValue(EnvSTTAccessKey)
	}
	remote.ResourceID = strings.TrimSpace(remote.ResourceID)
	if remote.ResourceID == "" {
		remote.ResourceID = defaultRemoteResourceID
	}
	remote.ModelName = strings.TrimSpace(remote.ModelName)
	if remote.ModelName == "" {
		remote.ModelName = defaultRemoteModelName
	}
}

func (c *Config) normalizeEmbedding() {
	c.Embedding.BaseURL = strings.TrimRight(strings.TrimSpace(c.Embedding.BaseURL), "/")
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = defaultEmbeddingBaseURL
	}
	c.Embedding.APIKey = strings.TrimSpace(c.Embedding.APIKey)
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = envValue(EnvEmbeddingAPIKey)
	}
	c.Embedding.Model = strings.TrimSpace(c.Embedding.Model)
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbeddingModel
	}
}

func (c *Config) normalizeVectorStore() {
	c.VectorStore.Backend = strings.ToLower(strings.TrimSpace(c.VectorStore.Backend))
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = defaultVectorBackend
	}
	cass := &c.VectorStore.Cassandra
	hosts := cass.Hosts[:0]
	for _, host := range cass.Hosts {
		if trimmed := strings.TrimSpace(host); trimmed != "" {
			hosts = append(hosts, trimmed)
		}
	}
	cass.Hosts = hosts
	cass.Keyspace = strings.TrimSpace(cass.Keyspace)
	cass.Consistency = strings.ToLower(strings.TrimSpace(cass.Consistency))
	if cass.Consistency == "" {
		cass.Consistency = defaultCassandraConsistency
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func envValue(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
