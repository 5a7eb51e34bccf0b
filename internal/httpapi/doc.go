// Package httpapi serves the read-only debug API over stored timelines.
//
// Routes (all GET, JSON):
//
//	/api/timelines                      timeline records, optional ?status=
//	/api/timelines/{id}/status          lifecycle status and last error
//	/api/timelines/{id}/manifest        alignment manifest of a completed run
//	/api/timelines/{id}/items           multimodal context items
//	/api/timelines/{id}/contexts        processed contexts
//	/api/timelines/{id}/strings         prompt-ready context strings
//	/api/timelines/{id}/groups          contexts grouped by semantic category
//
// Item routes accept repeated ?modality= filters. Unknown timelines yield 404.
package httpapi
