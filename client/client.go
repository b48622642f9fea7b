// Package client is the API-facing side of taskdeck: typed endpoints over the
// REST surface plus the session and task-collection state the presentation
// layer renders from.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/taskdeck/taskdeck/authsvc/pkg/authendpoint"
	"github.com/taskdeck/taskdeck/authsvc/pkg/authservice"
	"github.com/taskdeck/taskdeck/envelope"
	"github.com/taskdeck/taskdeck/tasksvc"
	"github.com/taskdeck/taskdeck/usersvc"
)

// APIError is a failure envelope returned by the server.
type APIError struct {
	Code    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string { return e.Message }

func hasCode(err error, code string) bool {
	var e *APIError
	return errors.As(err, &e) && e.Code == code
}

func IsUnauthorized(err error) bool { return hasCode(err, envelope.CodeUnauthorized) }
func IsForbidden(err error) bool    { return hasCode(err, envelope.CodeForbidden) }
func IsNotFound(err error) bool     { return hasCode(err, envelope.CodeNotFound) }
func IsValidation(err error) bool   { return hasCode(err, envelope.CodeValidation) }

type Client struct {
	registerEndpoint endpoint.Endpoint
	loginEndpoint    endpoint.Endpoint
	meEndpoint       endpoint.Endpoint
	logoutEndpoint   endpoint.Endpoint
	refreshEndpoint  endpoint.Endpoint

	tasksEndpoint      endpoint.Endpoint
	createTaskEndpoint endpoint.Endpoint
	updateTaskEndpoint endpoint.Endpoint
	deleteTaskEndpoint endpoint.Endpoint
}

func New(instance string, logger log.Logger) (*Client, error) {
	// Quickly sanitize the instance string.
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewErroringLimiter(rate.NewLimiter(rate.Every(time.Second), 100))
	resilient := func(name string, e endpoint.Endpoint) endpoint.Endpoint {
		e = limiter(e)
		e = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
		}))(e)
		return e
	}

	options := []httptransport.ClientOption{
		httptransport.ClientBefore(kitjwt.ContextToHTTP()),
	}

	c := &Client{}

	c.registerEndpoint = resilient("Register", httptransport.NewClient(
		"POST",
		copyURL(u, "/api/auth/register"),
		encodeJSONRequest,
		decodeSessionResponse,
		options...,
	).Endpoint())

	c.loginEndpoint = resilient("Login", httptransport.NewClient(
		"POST",
		copyURL(u, "/api/auth/login"),
		encodeJSONRequest,
		decodeSessionResponse,
		options...,
	).Endpoint())

	c.meEndpoint = resilient("Me", httptransport.NewClient(
		"GET",
		copyURL(u, "/api/auth/me"),
		encodeEmptyRequest,
		decodeUserResponse,
		options...,
	).Endpoint())

	c.logoutEndpoint = resilient("Logout", httptransport.NewClient(
		"POST",
		copyURL(u, "/api/auth/logout"),
		encodeEmptyRequest,
		decodeMessageResponse,
		options...,
	).Endpoint())

	c.refreshEndpoint = resilient("Refresh", httptransport.NewClient(
		"POST",
		copyURL(u, "/api/auth/refresh"),
		encodeEmptyRequest,
		decodeTokensResponse,
		options...,
	).Endpoint())

	c.tasksEndpoint = resilient("Tasks", httptransport.NewClient(
		"GET",
		copyURL(u, "/api/tasks"),
		encodeTasksRequest,
		decodeTasksResponse,
		options...,
	).Endpoint())

	c.createTaskEndpoint = resilient("CreateTask", httptransport.NewClient(
		"POST",
		copyURL(u, "/api/tasks"),
		encodeJSONRequest,
		decodeTaskResponse,
		options...,
	).Endpoint())

	c.updateTaskEndpoint = resilient("UpdateTask", httptransport.NewClient(
		"PUT",
		copyURL(u, "/api/tasks"),
		encodeUpdateTaskRequest,
		decodeTaskResponse,
		options...,
	).Endpoint())

	c.deleteTaskEndpoint = resilient("DeleteTask", httptransport.NewClient(
		"DELETE",
		copyURL(u, "/api/tasks"),
		encodeDeleteTaskRequest,
		decodeMessageResponse,
		options...,
	).Endpoint())

	return c, nil
}

func (c *Client) Register(ctx context.Context, name, email, password string) (authendpoint.SessionPayload, error) {
	response, err := c.registerEndpoint(ctx, registerRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return authendpoint.SessionPayload{}, err
	}
	return response.(authendpoint.SessionPayload), nil
}

func (c *Client) Login(ctx context.Context, email, password string) (authendpoint.SessionPayload, error) {
	response, err := c.loginEndpoint(ctx, loginRequest{Email: email, Password: password})
	if err != nil {
		return authendpoint.SessionPayload{}, err
	}
	return response.(authendpoint.SessionPayload), nil
}

func (c *Client) Me(ctx context.Context, token string) (usersvc.User, error) {
	response, err := c.meEndpoint(withToken(ctx, token), struct{}{})
	if err != nil {
		return usersvc.User{}, err
	}
	return response.(usersvc.User), nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.logoutEndpoint(withToken(ctx, token), struct{}{})
	return err
}

// Refresh exchanges a refresh token for a fresh pair. The refresh token
// travels as the bearer credential; the old pair is revoked server-side.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (authservice.Tokens, error) {
	response, err := c.refreshEndpoint(withToken(ctx, refreshToken), struct{}{})
	if err != nil {
		return authservice.Tokens{}, err
	}
	return response.(authservice.Tokens), nil
}

func (c *Client) Tasks(ctx context.Context, token string, f tasksvc.TaskFilter) ([]tasksvc.Task, error) {
	response, err := c.tasksEndpoint(withToken(ctx, token), f)
	if err != nil {
		return nil, err
	}
	return response.([]tasksvc.Task), nil
}

func (c *Client) CreateTask(ctx context.Context, token, title, description, priority string) (tasksvc.Task, error) {
	response, err := c.createTaskEndpoint(withToken(ctx, token), createTaskRequest{
		Title:       title,
		Description: description,
		Priority:    priority,
	})
	if err != nil {
		return tasksvc.Task{}, err
	}
	return response.(tasksvc.Task), nil
}

func (c *Client) UpdateTask(ctx context.Context, token string, taskID uint64, p tasksvc.TaskPatch) (tasksvc.Task, error) {
	response, err := c.updateTaskEndpoint(withToken(ctx, token), updateTaskRequest{TaskID: taskID, Patch: p})
	if err != nil {
		return tasksvc.Task{}, err
	}
	return response.(tasksvc.Task), nil
}

func (c *Client) DeleteTask(ctx context.Context, token string, taskID uint64) error {
	_, err := c.deleteTaskEndpoint(withToken(ctx, token), deleteTaskRequest{TaskID: taskID})
	return err
}

// withToken places the bearer token where ContextToHTTP picks it up. The
// session is always passed explicitly; there is no ambient default header.
func withToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, kitjwt.JWTContextKey, token)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type updateTaskRequest struct {
	TaskID uint64
	Patch  tasksvc.TaskPatch
}

type deleteTaskRequest struct {
	TaskID uint64
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = path
	return &next
}

func encodeJSONRequest(_ context.Context, r *http.Request, request interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request); err != nil {
		return err
	}
	r.Body = ioutil.NopCloser(&buf)
	return nil
}

func encodeEmptyRequest(_ context.Context, r *http.Request, _ interface{}) error {
	return nil
}

func encodeTasksRequest(_ context.Context, r *http.Request, request interface{}) error {
	f := request.(tasksvc.TaskFilter)

	q := r.URL.Query()
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Priority != "" {
		q.Set("priority", f.Priority)
	}
	r.URL.RawQuery = q.Encode()

	return nil
}

func encodeUpdateTaskRequest(ctx context.Context, r *http.Request, request interface{}) error {
	req := request.(updateTaskRequest)
	r.URL.Path = fmt.Sprintf("%s/%d", r.URL.Path, req.TaskID)
	return encodeJSONRequest(ctx, r, req.Patch)
}

func encodeDeleteTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(deleteTaskRequest)
	r.URL.Path = fmt.Sprintf("%s/%d", r.URL.Path, req.TaskID)
	return nil
}

// decodeData unwraps the response envelope, converting failure envelopes into
// APIError values the store layers can branch on.
func decodeData(r *http.Response, v interface{}) error {
	var env envelope.Response
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		return &APIError{Code: envelope.CodeServer, Message: r.Status}
	}

	if !env.Success || env.Error != nil {
		apiErr := &APIError{Code: envelope.CodeServer, Message: "Server Error"}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			if env.Error.Details != nil {
				raw, err := json.Marshal(env.Error.Details)
				if err == nil {
					apiErr.Details = raw
				}
			}
		}
		return apiErr
	}

	if v == nil {
		return nil
	}

	return json.Unmarshal(env.Data, v)
}

func decodeSessionResponse(_ context.Context, r *http.Response) (interface{}, error) {
	var payload authendpoint.SessionPayload
	if err := decodeData(r, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func decodeUserResponse(_ context.Context, r *http.Response) (interface{}, error) {
	var user usersvc.User
	if err := decodeData(r, &user); err != nil {
		return nil, err
	}
	return user, nil
}

func decodeMessageResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if err := decodeData(r, nil); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func decodeTokensResponse(_ context.Context, r *http.Response) (interface{}, error) {
	var tokens authservice.Tokens
	if err := decodeData(r, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func decodeTasksResponse(_ context.Context, r *http.Response) (interface{}, error) {
	tasks := []tasksvc.Task{}
	if err := decodeData(r, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func decodeTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	var task tasksvc.Task
	if err := decodeData(r, &task); err != nil {
		return nil, err
	}
	return task, nil
}
