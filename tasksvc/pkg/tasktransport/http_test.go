package tasktransport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	stdjwt "github.com/dgrijalva/jwt-go"
	"github.com/go-kit/kit/log"

	"github.com/taskdeck/taskdeck/authsvc"
	"github.com/taskdeck/taskdeck/envelope"
	"github.com/taskdeck/taskdeck/tasksvc"
	"github.com/taskdeck/taskdeck/tasksvc/pkg/taskendpoint"
	"github.com/taskdeck/taskdeck/tasksvc/pkg/taskservice"
)

type fakeTaskRepository struct {
	nextID uint64
	tasks  map[uint64]tasksvc.Task
}

func newFakeTaskRepository() *fakeTaskRepository {
	return &fakeTaskRepository{nextID: 1, tasks: map[uint64]tasksvc.Task{}}
}

func (r *fakeTaskRepository) Create(task tasksvc.Task) (tasksvc.Task, error) {
	task.ID = r.nextID
	r.nextID++
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	r.tasks[task.ID] = task
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
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeTaskRepository) Find(taskID uint64) (tasksvc.Task, error) {
	t, ok := r.tasks[taskID]
	if !ok {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return t, nil
}

func (r *fakeTaskRepository) Update(task tasksvc.Task) (tasksvc.Task, error) {
	if _, ok := r.tasks[task.ID]; !ok {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	r.tasks[task.ID] = task
	return task, nil
}

func (r *fakeTaskRepository) Delete(taskID uint64) error {
	if _, ok := r.tasks[taskID]; !ok {
		return tasksvc.ErrTaskNotFound
	}
	delete(r.tasks, taskID)
	return nil
}

func newTestHandler() (http.Handler, *fakeTaskRepository) {
	repo := newFakeTaskRepository()
	logger := log.NewNopLogger()

	svc := taskservice.NewBasicService(repo)
	endpoints := taskendpoint.New(svc, logger)
	return NewHTTPHandler(endpoints, logger), repo
}

func signToken(t *testing.T, userID uint64, expiry time.Duration) string {
	t.Helper()

	claims := stdjwt.MapClaims{
		"uuid":    "test-uuid",
		"user_id": userID,
		"exp":     time.Now().Add(expiry).Unix(),
	}
	hash, err := stdjwt.NewWithClaims(stdjwt.SigningMethodHS256, claims).SignedString([]byte(authsvc.AccessSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return hash
}

func do(handler http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope.Response {
	t.Helper()

	var env envelope.Response
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope: %v (%s)", err, w.Body.String())
	}
	return env
}

func assertEnvelopeError(t *testing.T, w *httptest.ResponseRecorder, status int, code, message string) {
	t.Helper()

	if w.Code != status {
		t.Errorf("status = %d, want %d (%s)", w.Code, status, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	if env.Success {
		t.Fatalf("expected failure envelope, got %s", w.Body.String())
	}
	if env.Error == nil {
		t.Fatal("failure envelope missing error object")
	}
	if env.Error.Code != code {
		t.Errorf("code = %q, want %q", env.Error.Code, code)
	}
	if message != "" && env.Error.Message != message {
		t.Errorf("message = %q, want %q", env.Error.Message, message)
	}
}

func TestMissingTokenDenied(t *testing.T) {
	handler, _ := newTestHandler()

	for _, tc := range []struct{ method, target string }{
		{"GET", "/tasks"},
		{"POST", "/tasks"},
		{"GET", "/tasks/1"},
		{"PUT", "/tasks/1"},
		{"DELETE", "/tasks/1"},
	} {
		w := do(handler, tc.method, tc.target, "", "")
		assertEnvelopeError(t, w, http.StatusUnauthorized, envelope.CodeUnauthorized, "No token, authorization denied")
	}
}

func TestMalformedTokenDenied(t *testing.T) {
	handler, _ := newTestHandler()

	w := do(handler, "GET", "/tasks", "not-a-jwt", "")
	assertEnvelopeError(t, w, http.StatusUnauthorized, envelope.CodeUnauthorized, "Token is not valid")
}

func TestExpiredTokenDenied(t *testing.T) {
	handler, _ := newTestHandler()
	token := signToken(t, 1, -time.Minute)

	w := do(handler, "GET", "/tasks", token, "")
	assertEnvelopeError(t, w, http.StatusUnauthorized, envelope.CodeUnauthorized, "Token is not valid")
}

func TestCreateTask(t *testing.T) {
	handler, _ := newTestHandler()
	token := signToken(t, 1, time.Minute)

	w := do(handler, "POST", "/tasks", token, `{"title":"buy milk","description":"2 liters","priority":"high"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	if !env.Success {
		t.Fatalf("expected success envelope, got %s", w.Body.String())
	}

	var task tasksvc.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decoding task: %v", err)
	}
	if task.Title != "buy milk" || task.Priority != tasksvc.PriorityHigh {
		t.Errorf("unexpected task: %+v", task)
	}
	if task.Status != tasksvc.StatusActive {
		t.Errorf("status = %q, want active", task.Status)
	}
	if task.UserID != 1 {
		t.Errorf("owner = %d, want the token's user", task.UserID)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	handler, repo := newTestHandler()
	token := signToken(t, 1, time.Minute)

	w := do(handler, "POST", "/tasks", token, `{"title":"","priority":"urgent"}`)
	assertEnvelopeError(t, w, http.StatusBadRequest, envelope.CodeValidation, "Validation Error")

	env := decodeEnvelope(t, w)
	var details []tasksvc.FieldError
	raw, _ := json.Marshal(env.Error.Details)
	if err := json.Unmarshal(raw, &details); err != nil {
		t.Fatalf("decoding details: %v", err)
	}
	if len(details) != 2 || details[0].Field != "title" || details[1].Field != "priority" {
		t.Errorf("unexpected details: %+v", details)
	}

	if len(repo.tasks) != 0 {
		t.Error("invalid input reached the store")
	}
}

func TestCreateTaskMalformedBody(t *testing.T) {
	handler, _ := newTestHandler()
	token := signToken(t, 1, time.Minute)

	w := do(handler, "POST", "/tasks", token, `{"title":`)
	assertEnvelopeError(t, w, http.StatusBadRequest, envelope.CodeValidation, "Invalid request payload")
}

func TestListTasksScopedToOwner(t *testing.T) {
	handler, repo := newTestHandler()
	repo.Create(tasksvc.Task{Title: "mine", Status: tasksvc.StatusActive, Priority: tasksvc.PriorityLow, UserID: 1})
	repo.Create(tasksvc.Task{Title: "theirs", Status: tasksvc.StatusActive, Priority: tasksvc.PriorityLow, UserID: 2})

	token := signToken(t, 1, time.Minute)
	w := do(handler, "GET", "/tasks", token, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	var tasks []tasksvc.Task
	if err := json.Unmarshal(env.Data, &tasks); err != nil {
		t.Fatalf("decoding tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "mine" {
		t.Errorf("unexpected listing: %+v", tasks)
	}
}

func TestListTasksInvalidFilter(t *testing.T) {
	handler, _ := newTestHandler()
	token := signToken(t, 1, time.Minute)

	w := do(handler, "GET", "/tasks?status=archived", token, "")
	assertEnvelopeError(t, w, http.StatusBadRequest, envelope.CodeValidation, "Validation Error")
}

func TestTaskNotFound(t *testing.T) {
	handler, _ := newTestHandler()
	token := signToken(t, 1, time.Minute)

	w := do(handler, "GET", "/tasks/999", token, "")
	assertEnvelopeError(t, w, http.StatusNotFound, envelope.CodeNotFound, "Task not found")

	// A non-numeric id cannot name any task.
	w = do(handler, "GET", "/tasks/abc", token, "")
	assertEnvelopeError(t, w, http.StatusNotFound, envelope.CodeNotFound, "Task not found")
}

func TestForeignTaskForbidden(t *testing.T) {
	handler, repo := newTestHandler()
	owned, _ := repo.Create(tasksvc.Task{Title: "private", Status: tasksvc.StatusActive, Priority: tasksvc.PriorityLow, UserID: 2})

	token := signToken(t, 1, time.Minute)

	w := do(handler, "PUT", "/tasks/1", token, `{"title":"stolen"}`)
	assertEnvelopeError(t, w, http.StatusForbidden, envelope.CodeForbidden, "Not authorized to modify this task")

	w = do(handler, "DELETE", "/tasks/1", token, "")
	assertEnvelopeError(t, w, http.StatusForbidden, envelope.CodeForbidden, "")

	if repo.tasks[owned.ID].Title != "private" {
		t.Error("forbidden request changed the task")
	}
}

func TestUpdateTaskPartial(t *testing.T) {
	handler, repo := newTestHandler()
	repo.Create(tasksvc.Task{Title: "report", Description: "numbers", Status: tasksvc.StatusActive, Priority: tasksvc.PriorityMedium, UserID: 1})

	token := signToken(t, 1, time.Minute)
	w := do(handler, "PUT", "/tasks/1", token, `{"status":"completed"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	var task tasksvc.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decoding task: %v", err)
	}
	if task.Status != tasksvc.StatusCompleted {
		t.Errorf("status = %q, want completed", task.Status)
	}
	if task.Title != "report" || task.Description != "numbers" {
		t.Errorf("omitted fields changed: %+v", task)
	}
}

func TestDeleteTask(t *testing.T) {
	handler, repo := newTestHandler()
	repo.Create(tasksvc.Task{Title: "errand", Status: tasksvc.StatusActive, Priority: tasksvc.PriorityLow, UserID: 1})

	token := signToken(t, 1, time.Minute)
	w := do(handler, "DELETE", "/tasks/1", token, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	var msg map[string]string
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("decoding message: %v", err)
	}
	if msg["message"] != "Task deleted successfully" {
		t.Errorf("message = %q", msg["message"])
	}

	if len(repo.tasks) != 0 {
		t.Error("task still in store")
	}
}
