// Package preflight provides readiness checks for the filesystem paths,
// database and rule files billexact depends on, plus the local
// ActivityWatch server used by ingest.
//
// The CLI "billexact status" command runs RunAll and renders one row per
// Result. Checks never return errors; failures are reported through
// Result.Detail so every check runs even when an earlier one fails.
package preflight
