// Package store persists billexact data in SQLite.
//
// Tables cover time entries, matters, timekeepers, keyword and override rules
// and matter bindings. Schema changes ship as embedded SQL migrations that
// run on Open. Store satisfies keywords.Backend so the categorizer's cached
// source can read and write rules through it.
package store
