package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"glass/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Ingestion contains configuration for the ingestion pipeline.
type Ingestion struct {
	MaxConcurrency int     `toml:"max_concurrency"`
	FrameRate      float64 `toml:"frame_rate"`
	FFmpegBinary   string  `toml:"ffmpeg_binary"`
	FFprobeBinary  string  `toml:"ffprobe_binary"`
	KeepArtifacts  bool    `toml:"keep_artifacts"`
}

// LocalSTT configures on-device transcription through WhisperX.
type LocalSTT struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
	Language    string `toml:"language"`
}

// RemoteSTT configures the remote speech recognition API.
type RemoteSTT struct {
	BaseURL               string `toml:"base_url"`
	AppKey                string `toml:"app_key"`
	AccessKey             string `toml:"access_key"`
	ResourceID            string `toml:"resource_id"`
	ModelName             string `toml:"model_name"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MaxFileSizeMB         int    `toml:"max_file_size_mb"`
	RecommendedFileSizeMB int    `toml:"recommended_file_size_mb"`
	MaxDurationSeconds    int    `toml:"max_duration_sec"`
}

// SpeechToText selects and configures the transcription provider.
type SpeechToText struct {
	Provider string    `toml:"provider"`
	Local    LocalSTT  `toml:"local"`
	Remote   RemoteSTT `toml:"remote"`
}

// Embedding configures the optional OpenAI-compatible embedding endpoint.
type Embedding struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Cassandra configures the Cassandra vector store backend.
type Cassandra struct {
	Hosts          []string `toml:"hosts"`
	Keyspace       string   `toml:"keyspace"`
	Consistency    string   `toml:"consistency"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// VectorStore selects the vector store backend.
type VectorStore struct {
	Backend   string    `toml:"backend"`
	Cassandra Cassandra `toml:"cassandra"`
}

// Chunking configures text chunking of transcript segments.
type Chunking struct {
	MaxChunkSize int `toml:"max_chunk_size"`
}

// API configures the read-only HTTP API.
type API struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for glass.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Ingestion: worker pool, frame sampling, ffmpeg binaries
//   - SpeechToText: provider selection plus local and remote settings
//   - Embedding: optional vectorization endpoint
//   - VectorStore: sqlite or cassandra backend
//   - Chunking: transcript chunk sizing
//   - API: debug HTTP API bind address
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Ingestion    Ingestion    `toml:"ingestion"`
	SpeechToText SpeechToText `toml:"speech_to_text"`
	Embedding    Embedding    `toml:"embedding"`
	VectorStore  VectorStore  `toml:"vector_store"`
	Chunking     Chunking     `toml:"chunking"`
	API          API          `toml:"api"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the config file is
// loaded first so credentials can stay out of the TOML file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads dir/.env without overriding variables already present in
// the environment.
func loadDotEnv(dir string) error {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load env file %s: %w", envPath, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("glass.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, lock, timeline and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.LockDir(), c.TimelinesDir(), c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "glass.db")
}

// VectorDatabasePath returns the SQLite file used by the sqlite vector backend.
func (c *Config) VectorDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "vectors.db")
}

// LockDir returns the directory holding per-timeline ingestion locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// TimelinesDir returns the directory holding per-timeline working files.
func (c *Config) TimelinesDir() string {
	return filepath.Join(c.Paths.DataDir, "timelines")
}

// TimelineDir returns the working directory for one timeline.
func (c *Config) TimelineDir(timelineID string) string {
	return filepath.Join(c.TimelinesDir(), timelineID)
}

// RemoteConnectTimeout returns the dial timeout for the remote speech API.
func (c *Config) RemoteConnectTimeout() time.Duration {
	return time.Duration(c.SpeechToText.Remote.ConnectTimeoutSeconds) * time.Second
}

// RemoteRequestTimeout returns the total request timeout for the remote speech API.
func (c *Config) RemoteRequestTimeout() time.Duration {
	return time.Duration(c.SpeechToText.Remote.RequestTimeoutSeconds) * time.Second
}

// RemoteMaxDuration returns the longest audio the remote speech API accepts.
func (c *Config) RemoteMaxDuration() time.Duration {
	return time.Duration(c.SpeechToText.Remote.MaxDurationSeconds) * time.Second
}

// RemoteCredentialsPresent reports whether both remote keys are configured.
func (c *Config) RemoteCredentialsPresent() bool {
	return strings.TrimSpace(c.SpeechToText.Remote.AppKey) != "" &&
		strings.TrimSpace(c.SpeechToText.Remote.AccessKey) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
