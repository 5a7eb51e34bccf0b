package extract

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"glass/internal/manifest"
	"glass/internal/services"
)

const (
	stageName     = "extraction"
	framesDirName = "frames"
	framePattern  = "frame_%05d.png"
	audioFileName = "audio.wav"
)

// Frame is one sampled still image and the time it was captured at.
type Frame struct {
	Timestamp float64
	Path      string
}

// Result lists the frames in capture order and the extracted audio file.
type Result struct {
	Frames    []Frame
	AudioPath string
	FrameRate float64
}

// Extractor produces frames and audio from a video.
type Extractor interface {
	Extract(ctx context.Context, videoPath, outDir string, frameRate float64) (Result, error)
}

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// FFmpeg extracts media with the ffmpeg binary.
type FFmpeg struct {
	binary string
	run    CommandRunner
}

// NewFFmpeg returns an extractor using binary, defaulting to "ffmpeg".
func NewFFmpeg(binary string) *FFmpeg {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary, run: execRunner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (f *FFmpeg) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		f.run = runner
	}
}

// Extract samples frames at frameRate per second into outDir/frames and
// writes outDir/audio.wav. ffmpeg numbers frames from 1; frame n is stamped
// (n-1)/frameRate seconds.
func (f *FFmpeg) Extract(ctx context.Context, videoPath, outDir string, frameRate float64) (Result, error) {
	if frameRate <= 0 || math.IsNaN(frameRate) || math.IsInf(frameRate, 0) {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "Validate frame rate", fmt.Sprintf("frame rate must be positive, got %v", frameRate), nil)
	}
	if info, err := os.Stat(videoPath); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "Open video", "video not readable", err)
	} else if info.IsDir() {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "Open video", fmt.Sprintf("%s is a directory", videoPath), nil)
	}

	framesDir := filepath.Join(outDir, framesDirName)
	if err := os.RemoveAll(framesDir); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "Prepare frames dir", "clear previous frames", err)
	}
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "Prepare frames dir", "create frames dir", err)
	}

	if output, err := f.run(ctx, f.binary, FrameArgs(videoPath, framesDir, frameRate)...); err != nil {
		return Result{}, f.toolError(ctx, "Extract frames", output, err)
	}
	frames, err := collectFrames(framesDir, frameRate)
	if err != nil {
		return Result{}, err
	}

	audioPath := filepath.Join(outDir, audioFileName)
	if output, err := f.run(ctx, f.binary, AudioArgs(videoPath, audioPath)...); err != nil {
		return Result{}, f.toolError(ctx, "Extract audio", output, err)
	}

	return Result{Frames: frames, AudioPath: audioPath, FrameRate: frameRate}, nil
}

func (f *FFmpeg) toolError(ctx context.Context, operation string, output []byte, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	msg := strings.TrimSpace(string(output))
	if msg == "" {
		msg = fmt.Sprintf("%s failed", f.binary)
	}
	return services.Wrap(services.ErrExternalTool, stageName, operation, msg, err)
}

// FrameArgs builds the ffmpeg arguments that sample frames at frameRate.
func FrameArgs(videoPath, framesDir string, frameRate float64) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%s", formatRate(frameRate)),
		filepath.Join(framesDir, framePattern),
	}
}

// AudioArgs builds the ffmpeg arguments that produce 16 kHz mono PCM audio.
func AudioArgs(videoPath, audioPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		audioPath,
	}
}

func formatRate(rate float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", rate), "0"), ".")
}

func collectFrames(dir string, frameRate float64) ([]Frame, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "List frames", "glob frames", err)
	}
	if len(matches) == 0 {
		return nil, services.Wrap(services.ErrMalformed, stageName, "List frames", "ffmpeg produced no frames", nil)
	}
	type numbered struct {
		index int
		path  string
	}
	indexed := make([]numbered, 0, len(matches))
	for _, path := range matches {
		index, err := frameIndex(path)
		if err != nil {
			return nil, services.Wrap(services.ErrMalformed, stageName, "List frames", filepath.Base(path), err)
		}
		indexed = append(indexed, numbered{index: index, path: path})
	}
	// Names widen past five digits, so order numerically, not lexically.
	sort.Slice(indexed, func(i, j int) bool { return indexed[i].index < indexed[j].index })

	frames := make([]Frame, 0, len(indexed))
	for _, f := range indexed {
		frames = append(frames, Frame{Timestamp: float64(f.index-1) / frameRate, Path: f.path})
	}
	return frames, nil
}

// frameIndex returns the 1-based ffmpeg sequence number in a frame file name.
func frameIndex(path string) (int, error) {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "frame_"), ".png")
	index, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("frame number: %w", err)
	}
	if index < 1 {
		return 0, fmt.Errorf("frame number %d out of range", index)
	}
	return index, nil
}

// Segments converts frames into manifest frame segments. Each frame covers
// one sampling interval starting at its timestamp.
func Segments(result Result) ([]manifest.Segment, error) {
	if result.FrameRate <= 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "Build frame segments", "frame rate must be positive", nil)
	}
	interval := 1 / result.FrameRate
	segments := make([]manifest.Segment, 0, len(result.Frames))
	for _, frame := range result.Frames {
		seg, err := manifest.NewSegment(frame.Timestamp, frame.Timestamp+interval, manifest.KindFrame, frame.Path)
		if err != nil {
			return nil, services.Wrap(services.ErrMalformed, stageName, "Build frame segments", filepath.Base(frame.Path), err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
