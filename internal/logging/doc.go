// Package logging assembles structured slog loggers and formatting helpers used
// across glass.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so ingestion code can tag log
// lines with timeline IDs, stages, and correlation IDs. Console output is
// coloured when the destination is a terminal. When a log directory is
// configured every record is also appended to glass.log as JSON.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape as the rest of the system.
package logging
