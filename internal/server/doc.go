// Package server is the HTTP surface of the index service.
//
// Routes:
//
//	POST /index         start a background run (202, or 409 when one is running)
//	GET  /index/status  progress snapshot of the current or last run
//	POST /search        {"query": ..., "k": 6} -> {"documents": [...], "metadatas": [...]}
//	GET  /healthz       configured backends
package server
