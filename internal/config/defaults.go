package config

const (
	defaultConfigPath            = "~/.config/glass/config.toml"
	defaultDataDir               = "~/.local/share/glass"
	defaultLogDir                = "~/.local/share/glass/logs"
	defaultMaxConcurrency        = 2
	defaultFrameRate             = 1.0
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultProvider              = ProviderLocal
	defaultWhisperXModel         = "large-v3"
	defaultWhisperXVADMethod     = "silero"
	defaultRemoteBaseURL         = "https://openspeech.bytedance.com/api/v3"
	defaultRemoteResourceID      = "volc.bigasr.auc_turbo"
	defaultRemoteModelName       = "bigmodel"
	defaultConnectTimeoutSeconds = 10
	defaultRequestTimeoutSeconds = 120
	defaultMaxFileSizeMB         = 100
	defaultRecommendedFileSizeMB = 20
	defaultMaxDurationSeconds    = 7200
	defaultEmbeddingBaseURL      = "https://api.openai.com/v1"
	defaultEmbeddingModel        = "text-embedding-3-small"
	defaultEmbeddingTimeout      = 30
	defaultVectorBackend         = VectorBackendSQLite
	defaultCassandraKeyspace     = "glass"
	defaultCassandraConsistency  = "quorum"
	defaultCassandraTimeout      = 10
	defaultMaxChunkSize          = 1000
	defaultAPIBind               = "127.0.0.1:7490"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Transcription providers.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// Vector store backends.
const (
	VectorBackendSQLite    = "sqlite"
	VectorBackendCassandra = "cassandra"
)

// Environment variables consulted for credentials.
const (
	EnvSTTAppKey       = "GLASS_STT_APP_KEY"
	EnvSTTAccessKey    = "GLASS_STT_ACCESS_KEY"
	EnvEmbeddingAPIKey = "GLASS_EMBEDDING_API_KEY"
	EnvHFToken         = "HF_TOKEN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Ingestion: Ingestion{
			MaxConcurrency: defaultMaxConcurrency,
			FrameRate:      defaultFrameRate,
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			KeepArtifacts:  true,
		},
		SpeechToText: SpeechToText{
			Provider: defaultProvider,
			Local: LocalSTT{
				Model:     defaultWhisperXModel,
				VADMethod: defaultWhisperXVADMethod,
			},
			Remote: RemoteSTT{
				BaseURL:               defaultRemoteBaseURL,
				ResourceID:            defaultRemoteResourceID,
				ModelName:             defaultRemoteModelName,
				ConnectTimeoutSeconds: defaultConnectTimeoutSeconds,
				RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
				MaxFileSizeMB:         defaultMaxFileSizeMB,
				RecommendedFileSizeMB: defaultRecommendedFileSizeMB,
				MaxDurationSeconds:    defaultMaxDurationSeconds,
			},
		},
		Embedding: Embedding{
			BaseURL:        defaultEmbeddingBaseURL,
			Model:          defaultEmbeddingModel,
			TimeoutSeconds: defaultEmbeddingTimeout,
		},
		VectorStore: VectorStore{
			Backend: defaultVectorBackend,
			Cassandra: Cassandra{
				Hosts:          []string{"127.0.0.1"},
				Keyspace:       defaultCassandraKeyspace,
				Consistency:    defaultCassandraConsistency,
				TimeoutSeconds: defaultCassandraTimeout,
			},
		},
		Chunking: Chunking{
			MaxChunkSize: defaultMaxChunkSize,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
