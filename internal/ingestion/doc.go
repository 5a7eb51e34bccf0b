// Package ingestion orchestrates a video through extraction, transcription,
// manifest construction, assembly and persistence.
//
// Manager is the single entry point. Each timeline moves through
// pending -> processing -> completed|failed in the relational store; the
// status is readable at any time without touching the running job. A
// timeline is claimed twice before it runs: in-process through an active
// set and across processes through a file lock under the data directory,
// so duplicate submissions fail fast with services.ErrInProgress instead of
// interleaving writes.
//
// Submit schedules work on a bounded pool (ingestion.max_concurrency);
// Ingest runs synchronously. Recover returns timelines orphaned in
// processing by a crashed process to pending.
package ingestion
