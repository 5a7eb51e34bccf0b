// Command glass ingests first-person recordings into time-aligned context
// segments and exposes them for inspection.
//
// Typical use:
//
//	glass config init
//	glass doctor
//	glass ingest ~/recordings/2024-05-01.mp4
//	glass items <timeline-id> --modality audio
//	glass serve
package main
