package taskservice

import (
	"context"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/taskdeck/taskdeck/tasksvc"
)

type Service interface {
	Tasks(ctx context.Context, a tasksvc.Auth, f tasksvc.TaskFilter) ([]tasksvc.Task, error)
	Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.Task, error)
	CreateTask(ctx context.Context, a tasksvc.Auth, title, description, priority string) (tasksvc.Task, error)
	UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, p tasksvc.TaskPatch) (tasksvc.Task, error)
	DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) (bool, error)
}

func New(t tasksvc.TaskRepository, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tasks tasksvc.TaskRepository
}

func NewBasicService(t tasksvc.TaskRepository) Service {
	return basicService{tasks: t}
}

func (s basicService) Tasks(_ context.Context, a tasksvc.Auth, f tasksvc.TaskFilter) ([]tasksvc.Task, error) {
	if a.UserID == 0 {
		return nil, tasksvc.ErrUserIDContextMissing
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	return s.tasks.FindAll(a.UserID, f)
}

func (s basicService) Task(_ context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.Task, error) {
	if a.UserID == 0 {
		return tasksvc.Task{}, tasksvc.ErrUserIDContextMissing
	}

	return s.ownedTask(a, taskID)
}

func (s basicService) CreateTask(_ context.Context, a tasksvc.Auth, title, description, priority string) (tasksvc.Task, error) {
	if a.UserID == 0 {
		return tasksvc.Task{}, tasksvc.ErrUserIDContextMissing
	}

	// Input constraints are checked in full before the store is touched.
	var v tasksvc.ValidationError
	if strings.TrimSpace(title) == "" {
		v.Add("title", "Title is required")
	}
	if !tasksvc.Priority(priority).Valid() {
		v.Add("priority", "Priority must be low, medium, or high")
	}
	if err := v.OrNil(); err != nil {
		return tasksvc.Task{}, err
	}

	return s.tasks.Create(tasksvc.Task{
		Title:       title,
		Description: description,
		Status:      tasksvc.StatusActive,
		Priority:    tasksvc.Priority(priority),
		UserID:      a.UserID,
	})
}

func (s basicService) UpdateTask(_ context.Context, a tasksvc.Auth, taskID uint64, p tasksvc.TaskPatch) (tasksvc.Task, error) {
	if a.UserID == 0 {
		return tasksvc.Task{}, tasksvc.ErrUserIDContextMissing
	}

	task, err := s.ownedTask(a, taskID)
	if err != nil {
		return tasksvc.Task{}, err
	}

	if err := p.Validate(); err != nil {
		return tasksvc.Task{}, err
	}

	return s.tasks.Update(p.Apply(task))
}

func (s basicService) DeleteTask(_ context.Context, a tasksvc.Auth, taskID uint64) (bool, error) {
	if a.UserID == 0 {
		return false, tasksvc.ErrUserIDContextMissing
	}

	if _, err := s.ownedTask(a, taskID); err != nil {
		return false, err
	}

	if err := s.tasks.Delete(taskID); err != nil {
		return false, err
	}

	return true, nil
}

// ownedTask confirms existence before ownership: a missing task is NotFound
// even for a caller who would not have owned it, and only an existing task
// owned by someone else is a Forbidden.
func (s basicService) ownedTask(a tasksvc.Auth, taskID uint64) (tasksvc.Task, error) {
	task, err := s.tasks.Find(taskID)
	if err != nil {
		return tasksvc.Task{}, err
	}

	if !task.OwnedBy(a.UserID) {
		return tasksvc.Task{}, tasksvc.ErrNotOwner
	}

	return task, nil
}
