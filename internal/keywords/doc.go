// Package keywords holds the phrase tables the categorizer scores against.
//
// A Snapshot is an immutable, ordered view of override and keyword rules.
// Sources hand out snapshots: Static wraps a fixed snapshot, while
// CachedSource reads through to a persistent Backend and drops its cached
// view on every write so new rules are visible to the next categorization.
package keywords
