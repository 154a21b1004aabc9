// Package textutil sanitizes caller-supplied identifiers before they become
// path segments. Working directories are keyed by user and job IDs, so both
// pass through DistinctSegment, which keeps the mapping one-to-one.
package textutil
