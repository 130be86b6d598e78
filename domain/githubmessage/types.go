// Copyright 2024 Calagopus.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package githubmessage tracks the Discord messages that accumulate
// state across related GitHub events: one message per pushed commit,
// updated as workflow jobs for that commit change status.
package githubmessage

import (
	"encoding/json"
	"time"

	"github.com/juju/errors"
)

// Status is the displayable state of a workflow job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Commit is one commit recorded for a tracked message.
type Commit struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	AuthorName string `json:"author"`
	Message    string `json:"message"`
}

// Job is the recorded outcome of one workflow job.
type Job struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Status  Status    `json:"status"`
	Started time.Time `json:"started"`
}

// JobStatuses is an insertion-ordered collection of job outcomes keyed
// by job id. Jobs can report out of order relative to their start, so
// merging is by id: a later event for a known job overwrites that job's
// status in place, and display order follows the order in which each
// job was first seen.
type JobStatuses struct {
	jobs []Job
}

// Merge applies a job event. The first event for a job id fixes its
// name and start time; subsequent events for the same id only overwrite
// the status. Re-applying an identical event is a no-op.
func (j *JobStatuses) Merge(id int64, name string, status Status, started time.Time) {
	for i := range j.jobs {
		if j.jobs[i].ID == id {
			j.jobs[i].Status = status
			return
		}
	}
	j.jobs = append(j.jobs, Job{ID: id, Name: name, Status: status, Started: started})
}

// Jobs returns the recorded jobs in insertion order.
func (j JobStatuses) Jobs() []Job {
	out := make([]Job, len(j.jobs))
	copy(out, j.jobs)
	return out
}

// Len returns the number of recorded jobs.
func (j JobStatuses) Len() int {
	return len(j.jobs)
}

// MarshalJSON serialises the jobs as an array, preserving insertion
// order.
func (j JobStatuses) MarshalJSON() ([]byte, error) {
	if j.jobs == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(j.jobs)
	return b, errors.Trace(err)
}

// UnmarshalJSON restores the jobs from their array serialisation.
func (j *JobStatuses) UnmarshalJSON(data []byte) error {
	return errors.Trace(json.Unmarshal(data, &j.jobs))
}

// Message is one tracked Discord message. The (repository, commit) pair
// is its correlation key; MessageID is the Discord message the state is
// rendered into, set once creation has succeeded.
type Message struct {
	ID           int64
	RepositoryID int64
	MessageID    string
	Commits      []Commit
	WorkflowSHA  string
	Jobs         JobStatuses
}
