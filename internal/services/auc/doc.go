// Package auc is a client for the remote speech recognition API (AUC Turbo).
//
// Check validates an audio file against the provider's limits without any
// network traffic; a violation is reported as services.ErrDisqualified so
// callers can route to a local transcriber instead. Recognize uploads the
// audio inline as base64 and returns utterances with timestamps in seconds.
//
// Failures are classified into the services taxonomy: credentials and quota
// problems map to ErrAuthOrQuota, timeouts, 5xx and throttling to
// ErrTransient, and an empty recognition result to ErrMalformed.
package auc
