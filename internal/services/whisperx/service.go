package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"glass/internal/language"
)

// CommandRunner executes one external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service transcribes a timeline's 16 kHz mono WAV with WhisperX.
type Service struct {
	cfg Config
	run CommandRunner
}

// NewService returns a service that shells out to uvx.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg, run: runUVX}
}

// WithCommandRunner replaces the uvx invocation (tests).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		s.run = runner
	}
}

// Model reports the checkpoint a run will load.
func (s *Service) Model() string {
	if m := strings.TrimSpace(s.cfg.Model); m != "" {
		return m
	}
	return DefaultModel
}

func (s *Service) CUDAEnabled() bool { return s.cfg.CUDAEnabled }

// Segment is one sentence from the WhisperX JSON output, times in seconds.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript holds the segments of one audio file and the document they came
// from.
type Transcript struct {
	Segments []Segment
	Raw      []byte
}

// Transcribe runs WhisperX on audioPath. Its JSON lands in a whisperx
// directory inside the timeline work directory, named after the audio file.
func (s *Service) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if strings.TrimSpace(audioPath) == "" {
		return Transcript{}, errors.New("whisperx: audio path required")
	}
	if _, err := os.Stat(audioPath); err != nil {
		return Transcript{}, fmt.Errorf("whisperx: %w", err)
	}
	outDir := filepath.Join(filepath.Dir(audioPath), outputDirName)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Transcript{}, fmt.Errorf("whisperx: output dir: %w", err)
	}
	if err := s.run(ctx, UVXCommand, s.buildArgs(audioPath, outDir)...); err != nil {
		return Transcript{}, fmt.Errorf("whisperx: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	raw, err := os.ReadFile(filepath.Join(outDir, stem+"."+outputFormat))
	if err != nil {
		return Transcript{}, fmt.Errorf("whisperx: read output: %w", err)
	}
	segments, err := ParseSegments(raw)
	if err != nil {
		return Transcript{}, err
	}
	return Transcript{Segments: segments, Raw: raw}, nil
}

// ParseSegments decodes the "segments" array of a WhisperX JSON document.
func ParseSegments(data []byte) ([]Segment, error) {
	var doc struct {
		Segments []Segment `json:"segments"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("whisperx: decode output: %w", err)
	}
	return doc.Segments, nil
}

// buildArgs assembles: package index, whisperx + audio, output, model and
// decoding flags, VAD, language, device.
func (s *Service) buildArgs(audioPath, outDir string) []string {
	var args []string
	if s.cfg.CUDAEnabled {
		args = append(args, "--index-url", cudaIndexURL, "--extra-index-url", pypiIndexURL)
	} else {
		args = append(args, "--index-url", pypiIndexURL)
	}
	args = append(args, "whisperx", audioPath,
		"--output_dir", outDir,
		"--output_format", outputFormat,
		"--model", s.Model(),
	)
	for _, flag := range decodeFlags {
		args = append(args, flag[0], flag[1])
	}

	vad := strings.TrimSpace(s.cfg.VADMethod)
	if vad == "" {
		vad = VADMethodSilero
	}
	args = append(args, "--vad_method", vad)
	if vad == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}
	if code := language.ToISO2(s.cfg.Language); code != "" {
		args = append(args, "--language", code)
	}
	if s.cfg.CUDAEnabled {
		return append(args, "--device", "cuda")
	}
	return append(args, "--device", "cpu", "--compute_type", "float32")
}

func runUVX(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// pyannote checkpoints fail to load under torch's weights-only default.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
