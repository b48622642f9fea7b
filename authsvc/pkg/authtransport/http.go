package authtransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	stdjwt "github.com/dgrijalva/jwt-go"
	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/taskdeck/taskdeck/authsvc"
	"github.com/taskdeck/taskdeck/authsvc/inmem"
	"github.com/taskdeck/taskdeck/authsvc/pkg/authendpoint"
	"github.com/taskdeck/taskdeck/envelope"
	"github.com/taskdeck/taskdeck/usersvc"
)

func NewHTTPHandler(endpoints authendpoint.Set, client inmem.Client, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	m := http.NewServeMux()

	registerHandler := httptransport.NewServer(
		endpoints.RegisterEndpoint,
		decodeHTTPRegisterRequest,
		encodeHTTPGenericResponse,
		options...,
	)

	loginHandler := httptransport.NewServer(
		endpoints.LoginEndpoint,
		decodeHTTPLoginRequest,
		encodeHTTPGenericResponse,
		options...,
	)

	accessKF := func(token *stdjwt.Token) (interface{}, error) {
		return []byte(authsvc.AccessSecret), nil
	}
	refreshKF := func(token *stdjwt.Token) (interface{}, error) {
		return []byte(authsvc.RefreshSecret), nil
	}

	var meEndpoint endpoint.Endpoint
	{
		meEndpoint = endpoints.MeEndpoint
		meEndpoint = NewAuthenticater(client)(meEndpoint)
		meEndpoint = kitjwt.NewParser(
			accessKF,
			stdjwt.SigningMethodHS256,
			kitjwt.MapClaimsFactory,
		)(meEndpoint)
	}

	meHandler := httptransport.NewServer(
		meEndpoint,
		decodeHTTPMeRequest,
		encodeHTTPGenericResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	var logoutEndpoint endpoint.Endpoint
	{
		logoutEndpoint = endpoints.LogoutEndpoint
		logoutEndpoint = NewAuthenticater(client)(logoutEndpoint)
		logoutEndpoint = kitjwt.NewParser(
			accessKF,
			stdjwt.SigningMethodHS256,
			kitjwt.MapClaimsFactory,
		)(logoutEndpoint)
	}

	logoutHandler := httptransport.NewServer(
		logoutEndpoint,
		decodeHTTPLogoutRequest,
		encodeHTTPGenericResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	var refreshEndpoint endpoint.Endpoint
	{
		refreshEndpoint = endpoints.RefreshEndpoint
		refreshEndpoint = kitjwt.NewParser(
			refreshKF,
			stdjwt.SigningMethodHS256,
			kitjwt.MapClaimsFactory,
		)(refreshEndpoint)
	}

	refreshHandler := httptransport.NewServer(
		refreshEndpoint,
		decodeHTTPRefreshRequest,
		encodeHTTPGenericResponse,
		append(options, httptransport.ServerBefore(kitjwt.HTTPToContext()))...,
	)

	m.Handle("/register", registerHandler)
	m.Handle("/login", loginHandler)
	m.Handle("/me", meHandler)
	m.Handle("/logout", logoutHandler)
	m.Handle("/refresh", refreshHandler)

	return m
}

func errorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	status, e := errToEnvelope(err)
	envelope.WriteError(w, status, e)
}

func errToEnvelope(err error) (int, envelope.Error) {
	var verr *authsvc.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, envelope.Error{
			Message: "Validation Error",
			Code:    envelope.CodeValidation,
			Details: verr.Fields,
		}
	}

	switch {
	case errors.Is(err, usersvc.ErrEmailTaken):
		return http.StatusBadRequest, envelope.Error{
			Message: "Email already in use",
			Code:    envelope.CodeValidation,
		}
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return http.StatusUnauthorized, envelope.Error{
			Message: "Invalid email or password",
			Code:    envelope.CodeUnauthorized,
		}
	case errors.Is(err, usersvc.ErrUserNotFound):
		return http.StatusUnauthorized, envelope.Error{
			Message: "User not found",
			Code:    envelope.CodeUnauthorized,
		}
	case errors.Is(err, kitjwt.ErrTokenContextMissing):
		return http.StatusUnauthorized, envelope.Error{
			Message: "No token, authorization denied",
			Code:    envelope.CodeUnauthorized,
		}
	case errors.Is(err, kitjwt.ErrTokenExpired),
		errors.Is(err, kitjwt.ErrTokenInvalid),
		errors.Is(err, kitjwt.ErrTokenMalformed),
		errors.Is(err, kitjwt.ErrTokenNotActive),
		errors.Is(err, kitjwt.ErrUnexpectedSigningMethod),
		errors.Is(err, authsvc.ErrClaimsMissing),
		errors.Is(err, authsvc.ErrClaimsInvalid),
		errors.Is(err, inmem.ErrKeyNotFound):
		return http.StatusUnauthorized, envelope.Error{
			Message: "Token is not valid",
			Code:    envelope.CodeUnauthorized,
		}
	case errors.Is(err, authsvc.ErrInvalidArgument):
		return http.StatusBadRequest, envelope.Error{
			Message: "Validation Error",
			Code:    envelope.CodeValidation,
		}
	}

	return http.StatusInternalServerError, envelope.Error{
		Message: "Server Error",
		Code:    envelope.CodeServer,
	}
}

func decodeHTTPRegisterRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req authendpoint.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, authsvc.ErrInvalidArgument
	}
	return req, nil
}

func decodeHTTPLoginRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req authendpoint.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, authsvc.ErrInvalidArgument
	}
	return req, nil
}

func decodeHTTPMeRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return authendpoint.MeRequest{}, nil
}

func decodeHTTPLogoutRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return authendpoint.LogoutRequest{}, nil
}

func decodeHTTPRefreshRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return authendpoint.RefreshRequest{}, nil
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
