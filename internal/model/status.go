package model

// JobStatus represents the current state of a download job
type JobStatus string

const (
	// JobStatusCreated means the job was dispatched but has not started fetching
	JobStatusCreated JobStatus = "Created"

	// JobStatusQueued means the job is waiting for a free worker slot
	JobStatusQueued JobStatus = "Queued"

	// JobStatusFetching means the fetch engine is running
	JobStatusFetching JobStatus = "Fetching"

	// JobStatusDelivering means produced files are being sent to the chat
	JobStatusDelivering JobStatus = "Delivering"

	// JobStatusCompleted means at least one artifact was delivered
	JobStatusCompleted JobStatus = "Completed"

	// JobStatusFailed means the job ended without delivering anything
	JobStatusFailed JobStatus = "Failed"
)

// String returns the string representation of JobStatus
func (js JobStatus) String() string {
	return string(js)
}

// IsActive returns true if the job holds a work directory or a worker slot
func (js JobStatus) IsActive() bool {
	return js == JobStatusFetching || js == JobStatusDelivering
}

// IsFinished returns true if the job reached a terminal state
func (js JobStatus) IsFinished() bool {
	return js == JobStatusCompleted || js == JobStatusFailed
}

// CanTransition reports whether moving from js to next is a legal step of the
// job state machine: created → [queued →] fetching → {failed} | delivering →
// {completed | failed}. Any non-terminal state may fail.
func (js JobStatus) CanTransition(next JobStatus) bool {
	if js.IsFinished() {
		return false
	}
	if next == JobStatusFailed {
		return true
	}
	switch js {
	case JobStatusCreated:
		return next == JobStatusQueued || next == JobStatusFetching
	case JobStatusQueued:
		return next == JobStatusFetching
	case JobStatusFetching:
		return next == JobStatusDelivering
	case JobStatusDelivering:
		return next == JobStatusCompleted
	}
	return false
}

// Phase is the state reported by the fetch engine alongside a progress sample
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseFinished    Phase = "finished"
)

// IsFinal returns true for the phase that forces a final progress edit
func (p Phase) IsFinal() bool {
	return p == PhaseFinished
}
