// Package contextmodel defines the generic processed-context record that the
// rest of glass populates and reads, plus the multimodal wrapper that links a
// context to its timeline and the read-side envelope built from stored items.
package contextmodel
