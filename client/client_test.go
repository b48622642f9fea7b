package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"

	"github.com/taskdeck/taskdeck/authsvc/inmem"
	"github.com/taskdeck/taskdeck/authsvc/pkg/authendpoint"
	"github.com/taskdeck/taskdeck/authsvc/pkg/authservice"
	"github.com/taskdeck/taskdeck/authsvc/pkg/authtransport"
	"github.com/taskdeck/taskdeck/tasksvc"
	"github.com/taskdeck/taskdeck/tasksvc/pkg/taskendpoint"
	"github.com/taskdeck/taskdeck/tasksvc/pkg/taskservice"
	"github.com/taskdeck/taskdeck/tasksvc/pkg/tasktransport"
	"github.com/taskdeck/taskdeck/usersvc"
)

type fakeUserRepository struct {
	nextID uint64
	users  map[uint64]usersvc.User
}

func (r *fakeUserRepository) Create(name, email, passwordHash string) (usersvc.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return usersvc.User{}, usersvc.ErrEmailTaken
		}
	}

	user := usersvc.User{ID: r.nextID, Name: name, Email: email, Password: passwordHash}
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepository) FindByEmail(email string) (usersvc.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return usersvc.User{}, usersvc.ErrUserNotFound
}

func (r *fakeUserRepository) Find(id uint64) (usersvc.User, error) {
	u, ok := r.users[id]
	if !ok {
		return usersvc.User{}, usersvc.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepository) IsExists(id uint64) (bool, error) {
	if _, ok := r.users[id]; !ok {
		return false, usersvc.ErrUserNotFound
	}
	return true, nil
}

type fakeTaskRepository struct {
	nextID uint64
	tasks  []tasksvc.Task
}

func (r *fakeTaskRepository) Create(task tasksvc.Task) (tasksvc.Task, error) {
	task.ID = r.nextID
	r.nextID++
	r.tasks = append([]tasksvc.Task{task}, r.tasks...)
	return task, nil
}

func (r *fakeTaskRepository) FindAll(userID uint64, f tasksvc.TaskFilter) ([]tasksvc.Task, error) {
	out := []tasksvc.Task{}
	for _, t := range r.tasks {
		if t.UserID != userID {
			continue
		}
		if f.Status != "" && string(t.Status) != f.Status {
			continue
		}
		if f.Priority != "" && string(t.Priority) != f.Priority {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *fakeTaskRepository) Find(taskID uint64) (tasksvc.Task, error) {
	for _, t := range r.tasks {
		if t.ID == taskID {
			return t, nil
		}
	}
	return tasksvc.Task{}, tasksvc.ErrTaskNotFound
}

func (r *fakeTaskRepository) Update(task tasksvc.Task) (tasksvc.Task, error) {
	for i := range r.tasks {
		if r.tasks[i].ID == task.ID {
			r.tasks[i] = task
			return task, nil
		}
	}
	return tasksvc.Task{}, tasksvc.ErrTaskNotFound
}

func (r *fakeTaskRepository) Delete(taskID uint64) error {
	for i := range r.tasks {
		if r.tasks[i].ID == taskID {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return nil
		}
	}
	return tasksvc.ErrTaskNotFound
}

// newTestServer stands up the whole API the way the server binary mounts it.
func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()

	logger := log.NewNopLogger()

	users := &fakeUserRepository{nextID: 1, users: map[uint64]usersvc.User{}}
	tokens := inmem.NewClient()

	authSvc := authservice.NewBasicService(users, authservice.NewTokenizer(), tokens)
	authHandler := authtransport.NewHTTPHandler(authendpoint.New(authSvc, logger), tokens, logger)

	taskSvc := taskservice.ResolveMiddleware(users, tokens)(
		taskservice.NewBasicService(&fakeTaskRepository{nextID: 1}),
	)
	taskHandler := tasktransport.NewHTTPHandler(taskendpoint.New(taskSvc, logger), logger)

	r := mux.NewRouter()
	r.PathPrefix("/api/auth").Handler(http.StripPrefix("/api/auth", authHandler))
	r.PathPrefix("/api").Handler(http.StripPrefix("/api", taskHandler))

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	c, err := New(server.URL, logger)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return server, c
}

func TestClientRoundTrip(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	payload, err := c.Register(ctx, "Jordan", "jordan@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if payload.Token == "" || payload.User.ID == 0 {
		t.Fatalf("payload = %+v", payload)
	}

	task, err := c.CreateTask(ctx, payload.Token, "buy milk", "2 liters", "high")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID == 0 || task.Status != tasksvc.StatusActive {
		t.Errorf("task = %+v", task)
	}

	tasks, err := c.Tasks(ctx, payload.Token, tasksvc.TaskFilter{})
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "buy milk" {
		t.Errorf("tasks = %+v", tasks)
	}

	completed := "completed"
	updated, err := c.UpdateTask(ctx, payload.Token, task.ID, tasksvc.TaskPatch{Status: &completed})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Status != tasksvc.StatusCompleted || updated.Title != "buy milk" {
		t.Errorf("updated = %+v", updated)
	}

	if err := c.DeleteTask(ctx, payload.Token, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	err = c.DeleteTask(ctx, payload.Token, task.ID)
	if !IsNotFound(err) {
		t.Errorf("second delete: got %v, want a not-found API error", err)
	}
}

func TestClientErrorMapping(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		_, err := c.Register(ctx, "", "nope", "abc")
		if !IsValidation(err) {
			t.Errorf("got %v, want a validation API error", err)
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		_, err := c.Tasks(ctx, "not-a-jwt", tasksvc.TaskFilter{})
		if !IsUnauthorized(err) {
			t.Errorf("got %v, want an unauthorized API error", err)
		}
	})

	t.Run("forbidden", func(t *testing.T) {
		owner, err := c.Register(ctx, "Owner", "owner@example.com", "hunter22")
		if err != nil {
			t.Fatalf("Register owner: %v", err)
		}
		task, err := c.CreateTask(ctx, owner.Token, "private", "", "low")
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}

		stranger, err := c.Register(ctx, "Stranger", "stranger@example.com", "hunter22")
		if err != nil {
			t.Fatalf("Register stranger: %v", err)
		}

		if err := c.DeleteTask(ctx, stranger.Token, task.ID); !IsForbidden(err) {
			t.Errorf("got %v, want a forbidden API error", err)
		}
	})
}
