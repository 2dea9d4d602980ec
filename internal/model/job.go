package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DownloadJob represents one confirmed download through fetch, delivery and
// cleanup. It is derived from a PendingRequest and never persisted.
type DownloadJob struct {
	ID                  string
	SourceURL           string
	ChatID              int64
	RequesterID         int64
	ProgressRef         MessageRef
	WorkDir             string   // exclusively owned, removed when the job ends
	ProducedFiles       []string // in the order produced by the fetch engine
	Status              JobStatus
	LastReportedPercent int       // 0 to 100
	LastReportedAt      time.Time // time of the last progress edit
	LastError           string    // short diagnostic of the failure, if any
	Delivered           int       // number of files or parts sent
	StartedAt           time.Time
	FinishedAt          time.Time
}

// NewDownloadJob creates a job for a confirmed request
func NewDownloadJob(id string, req PendingRequest) *DownloadJob {
	return &DownloadJob{
		ID:          id,
		SourceURL:   req.URL,
		ChatID:      req.ChatID,
		RequesterID: req.RequesterID,
		ProgressRef: req.ProgressRef,
		Status:      JobStatusCreated,
		StartedAt:   time.Now(),
	}
}

// SetStatus moves the job to next if the transition is legal.
// It returns false and leaves the job untouched otherwise.
func (dj *DownloadJob) SetStatus(next JobStatus) bool {
	if !dj.Status.CanTransition(next) {
		return false
	}
	dj.Status = next
	if next.IsFinished() {
		dj.FinishedAt = time.Now()
	}
	return true
}

// GetElapsedString returns the job duration formatted as hh:mm:ss or mm:ss
func (dj *DownloadJob) GetElapsedString() string {
	end := dj.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	if dj.StartedAt.IsZero() || end.Before(dj.StartedAt) {
		return "—"
	}
	return FormatSeconds(int(end.Sub(dj.StartedAt).Seconds()))
}

// FormatSeconds renders a number of seconds as hh:mm:ss, or mm:ss below an hour
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// DisplayName returns the file name of path without its extension
func DisplayName(path string) string {
	name := filepath.Base(path)
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name
}
