package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPending                     TaskStatus = "Pending"
	TaskStatusRunning                     TaskStatus = "Running"
	TaskStatusSucceeded                   TaskStatus = "Succeeded"
	TaskStatusFailed                      TaskStatus = "Failed"
	TaskStatusRejectedInsufficientCredits TaskStatus = "RejectedInsufficientCredits"
)

// Terminal reports whether no further transition is allowed out of s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusRejectedInsufficientCredits:
		return true
	}
	return false
}

const DefaultTaskName = "Task"

type Task struct {
	ID               uuid.UUID  `json:"id"`
	OwnerID          uuid.UUID  `json:"owner_id"`
	Name             string     `json:"name"`
	Status           TaskStatus `json:"status"`
	ChargedCost      *int       `json:"charged_cost"`
	ExecutionSeconds *int       `json:"execution_seconds"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	// OutcomeSeed is drawn with the charge so any finalizer derives the same outcome.
	OutcomeSeed *uint64 `json:"-"`
	Version     int64   `json:"-"`
}

// DueAt returns when simulated execution is expected to end, or false if the
// task has not started running.
func (t *Task) DueAt() (time.Time, bool) {
	if t.StartedAt == nil || t.ExecutionSeconds == nil {
		return time.Time{}, false
	}
	return t.StartedAt.Add(time.Duration(*t.ExecutionSeconds) * time.Second), true
}
