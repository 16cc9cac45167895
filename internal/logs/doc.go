// Package logs reads the billexact log file for the "billexact logs"
// command.
//
// Last reads the final N lines (optionally only those mentioning a given
// event type or substring) with bounded memory, and Follow polls from the
// returned offset until the context ends.
package logs
