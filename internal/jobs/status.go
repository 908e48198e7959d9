// Package jobs schedules and drives crawl and upload jobs to
// completion, and sweeps stalled or expired jobs on a fixed interval.
package jobs

import "codeindex/internal/model"

// Status aliases model.JobStatus so callers working only with the
// scheduler don't need to import the model package for the constant
// names.
type Status = model.JobStatus

const (
	StatusRunning   = model.JobStatusRunning
	StatusCompleted = model.JobStatusCompleted
)
