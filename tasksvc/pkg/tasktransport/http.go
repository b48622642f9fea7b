package tasktransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	stdjwt "github.com/dgrijalva/jwt-go"
	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/taskdeck/taskdeck/authsvc"
	"github.com/taskdeck/taskdeck/authsvc/inmem"
	"github.com/taskdeck/taskdeck/envelope"
	"github.com/taskdeck/taskdeck/tasksvc"
	"github.com/taskdeck/taskdeck/tasksvc/pkg/taskendpoint"
	"github.com/taskdeck/taskdeck/usersvc"
)

func NewHTTPHandler(endpoints taskendpoint.Set, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	kf := func(token *stdjwt.Token) (interface{}, error) {
		return []byte(authsvc.AccessSecret), nil
	}

	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = endpoints.TasksEndpoint
		tasksEndpoint = kitjwt.NewParser(
			kf,
			stdjwt.SigningMethodHS256,
			kitjwt.MapClaimsFactory,
		)(tasksEndpoint)
	}

	tasksHandler := httptransport.NewServer(
		tasksEndpoint,
		decodeHTTPTasksRequest,
		encodeHTTPGenericResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = endpoints.TaskEndpoint
		taskEndpoint = kitjwt.NewParser(
			kf,
			stdjwt.SigningMethodHS256,
			kitjwt.MapClaimsFactory,
		)(taskEndpoint)
	}

	taskHandler := httptransport.NewServer(
		taskEndpoint,
		decodeHTTPTaskRequest,
		encodeHTTPGenericResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = endpoints.CreateTaskEndpoint
		createTaskEndpoint = kitjwt.NewParser(
			kf,
			stdjwt.SigningMethodHS256,
			kitjwt.MapClaimsFactory,
		)(createTaskEndpoint)
	}

	createTaskHandler := httptransport.NewServer(
		createTaskEndpoint,
		decodeHTTPCreateTaskRequest,
		encodeHTTPGenericResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = endpoints.UpdateTaskEndpoint
		updateTaskEndpoint = kitjwt.NewParser(
			kf,
			stdjwt.SigningMethodHS256,
			kitjwt.MapClaimsFactory,
		)(updateTaskEndpoint)
	}

	updateTaskHandler := httptransport.NewServer(
		updateTaskEndpoint,
		decodeHTTPUpdateTaskRequest,
		encodeHTTPGenericResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = endpoints.DeleteTaskEndpoint
		deleteTaskEndpoint = kitjwt.NewParser(
			kf,
			stdjwt.SigningMethodHS256,
			kitjwt.MapClaimsFactory,
		)(deleteTaskEndpoint)
	}

	deleteTaskHandler := httptransport.NewServer(
		deleteTaskEndpoint,
		decodeHTTPDeleteTaskRequest,
		encodeHTTPGenericResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	r := mux.NewRouter()

	r.Methods("GET").Path("/tasks").Handler(tasksHandler)
	r.Methods("POST").Path("/tasks").Handler(createTaskHandler)
	r.Methods("GET").Path("/tasks/{task_id}").Handler(taskHandler)
	r.Methods("PUT").Path("/tasks/{task_id}").Handler(updateTaskHandler)
	r.Methods("DELETE").Path("/tasks/{task_id}").Handler(deleteTaskHandler)

	return r
}

func errorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	status, e := errToEnvelope(err)
	envelope.WriteError(w, status, e)
}

// errToEnvelope maps domain errors onto the response envelope. Anything it
// does not recognize becomes an opaque 500 so store internals never leak.
func errToEnvelope(err error) (int, envelope.Error) {
	var verr *tasksvc.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, envelope.Error{
			Message: "Validation Error",
			Code:    envelope.CodeValidation,
			Details: verr.Fields,
		}
	}

	switch {
	case errors.Is(err, tasksvc.ErrTaskNotFound):
		return http.StatusNotFound, envelope.Error{
			Message: "Task not found",
			Code:    envelope.CodeNotFound,
		}
	case errors.Is(err, tasksvc.ErrNotOwner):
		return http.StatusForbidden, envelope.Error{
			Message: "Not authorized to modify this task",
			Code:    envelope.CodeForbidden,
		}
	case errors.Is(err, kitjwt.ErrTokenContextMissing):
		return http.StatusUnauthorized, envelope.Error{
			Message: "No token, authorization denied",
			Code:    envelope.CodeUnauthorized,
		}
	case errors.Is(err, usersvc.ErrUserNotFound):
		return http.StatusUnauthorized, envelope.Error{
			Message: "User not found",
			Code:    envelope.CodeUnauthorized,
		}
	case errors.Is(err, kitjwt.ErrTokenExpired),
		errors.Is(err, kitjwt.ErrTokenInvalid),
		errors.Is(err, kitjwt.ErrTokenMalformed),
		errors.Is(err, kitjwt.ErrTokenNotActive),
		errors.Is(err, kitjwt.ErrUnexpectedSigningMethod),
		errors.Is(err, tasksvc.ErrClaimsMissing),
		errors.Is(err, tasksvc.ErrClaimsInvalid),
		errors.Is(err, tasksvc.ErrUserIDContextMissing),
		errors.Is(err, inmem.ErrKeyNotFound):
		return http.StatusUnauthorized, envelope.Error{
			Message: "Token is not valid",
			Code:    envelope.CodeUnauthorized,
		}
	case errors.Is(err, tasksvc.ErrInvalidArgument):
		return http.StatusBadRequest, envelope.Error{
			Message: "Invalid request payload",
			Code:    envelope.CodeValidation,
		}
	}

	return http.StatusInternalServerError, envelope.Error{
		Message: "Server Error",
		Code:    envelope.CodeServer,
	}
}

func decodeHTTPTasksRequest(_ context.Context, r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	return taskendpoint.TasksRequest{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
	}, nil
}

func decodeHTTPTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := taskID(r)
	if err != nil {
		return nil, err
	}

	return taskendpoint.TaskRequest{TaskID: taskID}, nil
}

func decodeHTTPCreateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req taskendpoint.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, tasksvc.ErrInvalidArgument
	}
	return req, nil
}

func decodeHTTPUpdateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := taskID(r)
	if err != nil {
		return nil, err
	}

	var patch tasksvc.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		return nil, tasksvc.ErrInvalidArgument
	}

	return taskendpoint.UpdateTaskRequest{TaskID: id, Patch: patch}, nil
}

func decodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := taskID(r)
	if err != nil {
		return nil, err
	}

	return taskendpoint.DeleteTaskRequest{TaskID: taskID}, nil
}

// taskID parses the path id. A non-numeric id cannot name any task, so it
// reports NotFound rather than a routing error.
func taskID(r *http.Request) (uint64, error) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["task_id"], 10, 64)
	if err != nil {
		return 0, tasksvc.ErrTaskNotFound
	}

	return id, nil
}

func encodeHTTPGenericResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
		errorEncoder(ctx, f.Failed(), w)
		return nil
	}

	status := http.StatusOK
	if sc, ok := response.(envelope.StatusCoder); ok {
		status = sc.StatusCode()
	}

	var data interface{} = response
	if d, ok := response.(envelope.Dataer); ok {
		data = d.Data()
	}

	return envelope.Write(w, status, data)
}
