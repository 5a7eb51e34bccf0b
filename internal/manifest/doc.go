// Package manifest defines the alignment manifest: the immutable, ordered set
// of time-aligned segments (frames, transcript utterances, markers) produced
// by one ingestion run.
//
// The manifest is the contract between ingestion and every downstream
// processor. Construction validates bounds and sorts by start time, so any
// *Manifest in hand is already non-empty and ordered. The JSON form
// (timeline_id, source, segments[start,end,type,payload]) is persisted for
// interop and debugging and must stay stable.
package manifest
