// Package transcription turns an audio file into timed audio segments.
//
// Transcriber is the capability the ingestion pipeline depends on. Local
// wraps on-device WhisperX; Remote wraps the AUC speech API. FromConfig
// selects the provider: a remote provider is always paired with the local
// one through Fallback, which switches providers only when the remote
// reports services.ErrDisqualified (a precondition failed before any upload).
// Every other failure propagates unchanged.
//
// Transcript text is normalized to Unicode NFC with collapsed whitespace
// before it becomes a segment payload.
package transcription
