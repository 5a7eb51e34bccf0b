package transcription

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"glass/internal/manifest"
)

const stageName = "transcription"

// Result is the normalized output of one transcription.
type Result struct {
	Segments []manifest.Segment
	// Raw is the provider's native response, kept for debugging.
	Raw json.RawMessage
	// Provider names the transcriber that produced the segments.
	Provider string
}

// Transcriber converts speech in an audio file into audio segments.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}

// NormalizeText drops invisible format characters (zero-width spaces, joiners,
// byte order marks), applies NFC and collapses runs of whitespace.
func NormalizeText(text string) string {
	cleaned, _, err := transform.String(transform.Chain(runes.Remove(runes.In(unicode.Cf)), norm.NFC), text)
	if err != nil {
		cleaned = norm.NFC.String(text)
	}
	return strings.Join(strings.Fields(cleaned), " ")
}

// audioSegment builds an audio segment from provider timing, reporting false
// when the text is blank or the timestamps are unusable.
func audioSegment(start, end float64, text string) (manifest.Segment, bool) {
	text = NormalizeText(text)
	if text == "" || math.IsNaN(start) || math.IsNaN(end) {
		return manifest.Segment{}, false
	}
	seg, err := manifest.NewSegment(start, end, manifest.KindAudio, text)
	if err != nil {
		return manifest.Segment{}, false
	}
	return seg, true
}
