// Package whisperx transcribes a timeline's extracted audio on the local
// machine by running WhisperX through uvx and reading back its JSON output.
package whisperx
