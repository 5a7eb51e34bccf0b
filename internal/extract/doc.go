// Package extract pulls sampled still frames and a speech-ready audio track
// out of a video file.
//
// Extractor is the capability the ingestion pipeline depends on. FFmpeg is
// the production implementation: frames are written as numbered PNG files
// at a fixed sampling rate and audio is transcoded to 16 kHz mono PCM WAV.
// Segments converts an extraction result into frame segments for the
// alignment manifest.
package extract
