// Package mcp exposes the index service as a Model Context Protocol server
// on stdio, for AI coding assistants.
//
// Tools:
//   - index_workspace: start a background indexing run (error -32002 while one is running)
//   - index_status: progress of the current or last run
//   - search_code: nearest chunks for a query, {"query": "...", "limit": 6}
//
// Errors are returned as *MCPError values carrying a JSON-RPC code and
// optional structured data.
package mcp
