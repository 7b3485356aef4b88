// Package logging configures structured slog output for the daemon and CLI.
// It provides console and JSON handlers, attribute helpers with standardized
// field names, and context-derived fields for per-document log correlation.
package logging
