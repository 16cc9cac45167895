// Package ingest turns raw window-focus events into billable time entries.
//
// Events come from an ActivityWatch server (window watcher buckets only) or
// from a JSON export file. The pipeline drops short and ignored-app events,
// merges contiguous work on the same subject, routes each activity through
// the configured bindings, categorizes the description, and stores the
// result. Re-ingesting the same window is idempotent: entries are keyed by
// their start time and description.
package ingest
