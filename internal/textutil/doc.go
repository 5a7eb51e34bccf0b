// Package textutil tokenizes transcript text and picks its most frequent
// terms as context keywords.
//
// Tokenization lowercases text, splits on anything that is not a letter or
// digit, and drops tokens shorter than three characters and common English
// stop words.
package textutil
