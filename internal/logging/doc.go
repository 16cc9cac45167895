// Package logging assembles structured slog loggers used across billexact.
//
// It owns the configurable console/JSON handlers and centralizes level and
// output plumbing so the CLI, ingestion, and compliance runs emit records of
// the same shape. Component loggers carry a standardized "component"
// attribute, and WarnWithContext enforces the event_type/error_hint/impact
// triple on operator-facing warnings such as rule configuration fallbacks.
//
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
