package session

import "time"

// runIDPrefix namespaces run identifiers so saved artifacts are recognizable
// on disk.
const runIDPrefix = "ohv"

// NewRunID derives a human-sortable run identifier from the given time,
// e.g. "ohv-20260901-142233". Generated once per fresh run and retained
// across reuse-existing-orders continuations.
func NewRunID(t time.Time) string {
	return runIDPrefix + "-" + t.Format("20060102-150405")
}
