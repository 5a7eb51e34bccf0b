package whisperx

// Config selects how WhisperX transcribes the extracted timeline audio.
type Config struct {
	// Model names the Whisper checkpoint, e.g. "large-v3".
	Model       string
	CUDAEnabled bool
	// VADMethod is "silero" (default) or "pyannote"; pyannote needs HFToken.
	VADMethod string
	HFToken   string
	// Language is a name or code understood by the language package. Empty
	// means WhisperX detects it from the recording.
	Language string
}

// UVXCommand launches WhisperX without a managed Python environment.
const UVXCommand = "uvx"

// Defaults and decoding settings. Long recordings of conversational speech
// transcribe best with sentence segments and a wide beam.
const (
	DefaultModel      = "large-v3"
	VADMethodSilero   = "silero"
	VADMethodPyannote = "pyannote"

	pypiIndexURL = "https://pypi.org/simple"
	cudaIndexURL = "https://download.pytorch.org/whl/cu128"

	outputDirName = "whisperx"
	outputFormat  = "json"
)

// decodeFlags are passed to every run, in order.
var decodeFlags = [][2]string{
	{"--batch_size", "4"},
	{"--segment_resolution", "sentence"},
	{"--chunk_size", "15"},
	{"--vad_onset", "0.08"},
	{"--vad_offset", "0.07"},
	{"--beam_size", "10"},
	{"--best_of", "10"},
	{"--temperature", "0.0"},
	{"--patience", "1.0"},
}
