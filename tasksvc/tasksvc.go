package tasksvc

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusCompleted
}

// Priority is the urgency bucket of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Task struct {
	ID          uint64    `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status" gorm:"default:active"`
	Priority    Priority  `json:"priority"`
	UserID      uint64    `json:"userId" gorm:"index"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnedBy reports whether userID is the owner of the task. Ownership is
// decided by id value equality and never by how the task was loaded.
func (t Task) OwnedBy(userID uint64) bool {
	return t.UserID == userID
}

// TaskFilter narrows a task listing. Empty fields mean no filtering.
type TaskFilter struct {
	Status   string
	Priority string
}

func (f TaskFilter) Validate() error {
	var v ValidationError
	if f.Status != "" && !Status(f.Status).Valid() {
		v.Add("status", "Status must be active or completed")
	}
	if f.Priority != "" && !Priority(f.Priority).Valid() {
		v.Add("priority", "Priority must be low, medium, or high")
	}
	return v.OrNil()
}

// TaskPatch is a partial update. A nil field was omitted from the request
// and keeps the stored value; a non-nil field replaces it, so an explicit
// empty description clears the description.
type TaskPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
}

func (p TaskPatch) Validate() error {
	var v ValidationError
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		v.Add("title", "Title is required")
	}
	if p.Status != nil && !Status(*p.Status).Valid() {
		v.Add("status", "Status must be active or completed")
	}
	if p.Priority != nil && !Priority(*p.Priority).Valid() {
		v.Add("priority", "Priority must be low, medium, or high")
	}
	return v.OrNil()
}

// Apply merges the patch into t and returns the result. Validate first.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = Status(*p.Status)
	}
	if p.Priority != nil {
		t.Priority = Priority(*p.Priority)
	}
	return t
}

type TaskRepository interface {
	Create(task Task) (Task, error)
	// FindAll returns the user's tasks matching the filter, newest first.
	FindAll(userID uint64, f TaskFilter) ([]Task, error)
	// Find looks a task up by id alone so that existence can be checked
	// before ownership.
	Find(taskID uint64) (Task, error)
	Update(task Task) (Task, error)
	Delete(taskID uint64) error
}

type Auth struct {
	AccessUUID string
	UserID     uint64
}

// FieldError is one itemized validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrTaskNotFound         = errors.New("task not found")
	ErrNotOwner             = errors.New("not authorized to modify this task")
	ErrUserIDContextMissing = errors.New("user ID was not passed through the context")
	ErrClaimsMissing        = errors.New("JWT claims was not passed through the context")
	ErrClaimsInvalid        = errors.New("JWT claims was invalid")
)
