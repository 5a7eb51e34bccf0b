// Package language normalizes the language hints accepted in configuration
// into the ISO 639-1 codes speech recognizers expect.
package language
