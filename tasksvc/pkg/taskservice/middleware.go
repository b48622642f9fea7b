package taskservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/taskdeck/taskdeck/authsvc/inmem"
	"github.com/taskdeck/taskdeck/tasksvc"
	"github.com/taskdeck/taskdeck/usersvc"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Tasks(ctx context.Context, a tasksvc.Auth, f tasksvc.TaskFilter) (t []tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Tasks",
			"user_id", a.UserID,
			"status", f.Status,
			"priority", f.Priority,
			"err", err,
		)
	}()
	return mw.next.Tasks(ctx, a, f)
}

func (mw loggingMiddleware) Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Task",
			"user_id", a.UserID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.Task(ctx, a, taskID)
}

func (mw loggingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, title, description, priority string) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "CreateTask",
			"user_id", a.UserID,
			"title", title,
			"priority", priority,
			"err", err,
		)
	}()
	return mw.next.CreateTask(ctx, a, title, description, priority)
}

func (mw loggingMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, p tasksvc.TaskPatch) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "UpdateTask",
			"user_id", a.UserID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.UpdateTask(ctx, a, taskID, p)
}

func (mw loggingMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) (result bool, err error) {
	defer func() {
		mw.logger.Log(
			"method", "DeleteTask",
			"user_id", a.UserID,
			"task_id", taskID,
			"result", result,
			"err", err,
		)
	}()
	return mw.next.DeleteTask(ctx, a, taskID)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) Tasks(ctx context.Context, a tasksvc.Auth, f tasksvc.TaskFilter) (t []tasksvc.Task, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "tasks").Add(1)
		mw.requestLatency.With("method", "tasks").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Tasks(ctx, a, f)
}

func (mw instrumentingMiddleware) Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (t tasksvc.Task, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "task").Add(1)
		mw.requestLatency.With("method", "task").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Task(ctx, a, taskID)
}

func (mw instrumentingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, title, description, priority string) (t tasksvc.Task, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "create_task").Add(1)
		mw.requestLatency.With("method", "create_task").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.CreateTask(ctx, a, title, description, priority)
}

func (mw instrumentingMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, p tasksvc.TaskPatch) (t tasksvc.Task, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "update_task").Add(1)
		mw.requestLatency.With("method", "update_task").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.UpdateTask(ctx, a, taskID, p)
}

func (mw instrumentingMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) (result bool, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "delete_task").Add(1)
		mw.requestLatency.With("method", "delete_task").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.DeleteTask(ctx, a, taskID)
}

// ResolveMiddleware completes identity resolution after signature checks: the
// access UUID must still be in the live-token store and the user referenced by
// the claims must still exist.
func ResolveMiddleware(users usersvc.UserRepository, tokens inmem.Client) Middleware {
	return func(next Service) Service {
		return resolveMiddleware{next, users, tokens}
	}
}

type resolveMiddleware struct {
	next   Service
	users  usersvc.UserRepository
	tokens inmem.Client
}

func (mw resolveMiddleware) Tasks(ctx context.Context, a tasksvc.Auth, f tasksvc.TaskFilter) ([]tasksvc.Task, error) {
	if err := mw.resolve(a); err != nil {
		return nil, err
	}

	return mw.next.Tasks(ctx, a, f)
}

func (mw resolveMiddleware) Task(ctx context.Context, a tasksvc.Auth, taskID uint64) (tasksvc.Task, error) {
	if err := mw.resolve(a); err != nil {
		return tasksvc.Task{}, err
	}

	return mw.next.Task(ctx, a, taskID)
}

func (mw resolveMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, title, description, priority string) (tasksvc.Task, error) {
	if err := mw.resolve(a); err != nil {
		return tasksvc.Task{}, err
	}

	return mw.next.CreateTask(ctx, a, title, description, priority)
}

func (mw resolveMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID uint64, p tasksvc.TaskPatch) (tasksvc.Task, error) {
	if err := mw.resolve(a); err != nil {
		return tasksvc.Task{}, err
	}

	return mw.next.UpdateTask(ctx, a, taskID, p)
}

func (mw resolveMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID uint64) (bool, error) {
	if err := mw.resolve(a); err != nil {
		return false, err
	}

	return mw.next.DeleteTask(ctx, a, taskID)
}

func (mw resolveMiddleware) resolve(a tasksvc.Auth) error {
	if err := mw.tokens.Get(a.AccessUUID); err != nil {
		return err
	}

	if _, err := mw.users.IsExists(a.UserID); err != nil {
		return err
	}

	return nil
}
