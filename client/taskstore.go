package client

import (
	"context"
	"errors"
	"sync"

	"github.com/taskdeck/taskdeck/tasksvc"
)

// FilterAll matches every task on a dimension.
const FilterAll = "all"

// ErrBusy is returned when a mutation is attempted while another request is
// still in flight.
var ErrBusy = errors.New("task store busy")

// Notifier is invoked after every state change, on the goroutine that caused
// it. Presentation layers hang their re-render here.
type Notifier func()

// TaskStore mirrors the caller's task collection. It holds the raw server
// list; filters are applied on read, so changing them never refetches.
type TaskStore struct {
	mu sync.Mutex

	client  *Client
	session *Session
	notify  Notifier

	tasks    []tasksvc.Task
	loaded   bool
	busy     bool
	lastErr  error
	status   string
	priority string
}

func NewTaskStore(c *Client, s *Session, notify Notifier) *TaskStore {
	if notify == nil {
		notify = func() {}
	}
	return &TaskStore{
		client:   c,
		session:  s,
		notify:   notify,
		status:   FilterAll,
		priority: FilterAll,
	}
}

// Tasks returns the filtered view of the collection, preserving server order.
func (ts *TaskStore) Tasks() []tasksvc.Task {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	view := []tasksvc.Task{}
	for _, t := range ts.tasks {
		if ts.status != FilterAll && string(t.Status) != ts.status {
			continue
		}
		if ts.priority != FilterAll && string(t.Priority) != ts.priority {
			continue
		}
		view = append(view, t)
	}
	return view
}

func (ts *TaskStore) Loaded() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.loaded
}

func (ts *TaskStore) Busy() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.busy
}

// Err returns the outcome of the most recent operation.
func (ts *TaskStore) Err() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.lastErr
}

func (ts *TaskStore) Filter() (status, priority string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.status, ts.priority
}

// SetFilter narrows the view. It is a pure view change over the already
// loaded collection.
func (ts *TaskStore) SetFilter(status, priority string) {
	ts.mu.Lock()
	if status != "" {
		ts.status = status
	}
	if priority != "" {
		ts.priority = priority
	}
	ts.mu.Unlock()

	ts.notify()
}

// Load replaces the collection with the server's current list for the
// session owner.
func (ts *TaskStore) Load(ctx context.Context) error {
	if err := ts.begin(); err != nil {
		return err
	}

	tasks, err := ts.client.Tasks(ctx, ts.session.Token, tasksvc.TaskFilter{})
	if err != nil {
		return ts.fail(err)
	}

	ts.mu.Lock()
	ts.tasks = tasks
	ts.loaded = true
	ts.mu.Unlock()

	return ts.done()
}

// Create submits a new task and prepends the server's copy, matching the
// newest-first list order.
func (ts *TaskStore) Create(ctx context.Context, title, description, priority string) (tasksvc.Task, error) {
	if err := ts.begin(); err != nil {
		return tasksvc.Task{}, err
	}

	task, err := ts.client.CreateTask(ctx, ts.session.Token, title, description, priority)
	if err != nil {
		return tasksvc.Task{}, ts.fail(err)
	}

	ts.mu.Lock()
	ts.tasks = append([]tasksvc.Task{task}, ts.tasks...)
	ts.mu.Unlock()

	return task, ts.done()
}

// Update applies a partial change and replaces the matching entry in place
// with the server's merged copy.
func (ts *TaskStore) Update(ctx context.Context, taskID uint64, p tasksvc.TaskPatch) (tasksvc.Task, error) {
	if err := ts.begin(); err != nil {
		return tasksvc.Task{}, err
	}

	task, err := ts.client.UpdateTask(ctx, ts.session.Token, taskID, p)
	if err != nil {
		return tasksvc.Task{}, ts.fail(err)
	}

	ts.mu.Lock()
	for i := range ts.tasks {
		if ts.tasks[i].ID == task.ID {
			ts.tasks[i] = task
			break
		}
	}
	ts.mu.Unlock()

	return task, ts.done()
}

// Delete removes the task on the server, then drops it from the collection.
func (ts *TaskStore) Delete(ctx context.Context, taskID uint64) error {
	if err := ts.begin(); err != nil {
		return err
	}

	if err := ts.client.DeleteTask(ctx, ts.session.Token, taskID); err != nil {
		return ts.fail(err)
	}

	ts.mu.Lock()
	for i := range ts.tasks {
		if ts.tasks[i].ID == taskID {
			ts.tasks = append(ts.tasks[:i], ts.tasks[i+1:]...)
			break
		}
	}
	ts.mu.Unlock()

	return ts.done()
}

func (ts *TaskStore) begin() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.busy {
		return ErrBusy
	}
	ts.busy = true
	ts.lastErr = nil
	return nil
}

// fail records the error and, on an unauthorized response, invalidates the
// session: a rejected token means the identity is gone, not just the call.
func (ts *TaskStore) fail(err error) error {
	ts.mu.Lock()
	ts.busy = false
	ts.lastErr = err
	ts.mu.Unlock()

	if IsUnauthorized(err) {
		ts.session.Invalidate()
	}

	ts.notify()
	return err
}

func (ts *TaskStore) done() error {
	ts.mu.Lock()
	ts.busy = false
	ts.mu.Unlock()

	ts.notify()
	return nil
}
