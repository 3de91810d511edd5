// Package httpapi exposes a dispatcher over a small JSON REST API and
// provides a Go client for it.
//
//	POST /chatgpt/api/questions  {"text", "conversation_id", "parent_id"}
//	  -> {"data": {"question_id"}}
//	GET  /chatgpt/api/answers?question_id=ID
//	  -> {"data": {"text", "conversation_id", "parent_id", "finished", "error"}}
//	GET  /healthz
//	  -> {"data": <dispatcher stats>}
//
// Failures are reported as {"error": "..."} with a 4xx or 5xx status.
package httpapi
