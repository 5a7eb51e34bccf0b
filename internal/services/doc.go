// Package services defines shared utilities consumed by the ingestion stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp timeline IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - The error taxonomy (not found, in progress, disqualified, transient,
//     auth/quota, malformed, inconsistent) plus the Wrap helper that tags
//     failures so the orchestrator can persist a stable error kind.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
