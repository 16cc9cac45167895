// Package billing defines the time-entry domain model shared by the
// categorizer, compliance engine, LEDES exporter and persistence layer.
//
// TimeEntry codes are assigned as a pair through SetCodes; Validate reports
// malformed entries as *ValidationError values that wrap ErrInvalidEntry.
package billing
