// Package progress turns high-frequency byte samples from the fetch engine
// into throttled, ordered edits of a single chat message per job.
package progress
