// Package ledes serializes time entries into LEDES 1998B invoice files.
//
// Export writes the 14-column layout used for quick review uploads; ExportFull
// writes the canonical 24-field LEDES1998B document and validates it before
// returning. All money arithmetic uses decimal values rounded half-up to
// cents, so identical input always yields identical bytes. WriteFile places
// an invoice on disk atomically under an advisory lock.
package ledes
