// Package logging builds slog loggers with console and JSON handlers and
// shared attribute helpers.
package logging
