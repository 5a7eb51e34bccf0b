// Package store persists timeline ingestion state and multimodal context rows
// in SQLite.
//
// The timelines table is the durable status record for the ingestion state
// machine (pending, processing, completed, failed) and holds the completed
// alignment manifest. The multimodal_context table is the relational half of
// the context repository: one row per context record, keyed by its
// content-derived context_id, carrying modality, content reference, span and
// embedding readiness.
//
// Status reads are single SELECTs; the database runs in WAL mode so readers
// never wait on an in-flight ingestion. Writes retry on SQLITE_BUSY. Schema
// changes bump schemaVersion in schema.go; users delete the database to adopt
// a new schema.
package store
