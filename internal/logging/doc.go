// Package logging configures the process-wide slog logger: a text handler
// on stderr plus a size-rotated index_service.log in the log directory.
package logging
