// Package repository dual-writes context items to the vector store and the
// relational store, keeping the id of every relational row equal to the
// vector id produced for the same item.
//
// Vector backends batch per semantic category. Items are grouped by category
// with their original input positions, and the ids each batch returns are
// mapped back to those positions. A batch that returns the wrong number of
// ids aborts the call before any relational write.
//
// The relational phase of a call is one transaction. The vector phase is a
// keyed upsert and is never rolled back; repeating the call heals it.
package repository
