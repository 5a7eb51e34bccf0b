package ffprobe

import (
	"math"
	"testing"
)

func TestParseAndHelpers(t *testing.T) {
	payload := []byte(`{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
    {"index": 1, "codec_type": "audio", "codec_name": "pcm_s16le", "sample_rate": "16000", "channels": 1, "duration": "125.5"}
  ],
  "format": {"filename": "walk.mp4", "duration": "", "size": "2048", "format_name": "mov,mp4"}
}`)
	result, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 1 {
		t.Fatalf("unexpected stream counts: video=%d audio=%d", result.VideoStreamCount(), result.AudioStreamCount())
	}
	audio, ok := result.FirstAudioStream()
	if !ok || audio.Channels != 1 || audio.CodecName != "pcm_s16le" {
		t.Fatalf("unexpected audio stream %#v", audio)
	}
	if result.DurationSeconds() != 125.5 {
		t.Fatalf("expected stream duration fallback, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 2048 {
		t.Fatalf("unexpected size %d", result.SizeBytes())
	}
}

func TestHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected NaN duration, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if _, ok := result.FirstAudioStream(); ok {
		t.Fatal("expected no audio stream")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
