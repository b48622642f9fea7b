package authendpoint

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	stdjwt "github.com/dgrijalva/jwt-go"
	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/taskdeck/taskdeck/authsvc"
	"github.com/taskdeck/taskdeck/authsvc/pkg/authservice"
	"github.com/taskdeck/taskdeck/envelope"
	"github.com/taskdeck/taskdeck/usersvc"
)

type Set struct {
	RegisterEndpoint endpoint.Endpoint
	LoginEndpoint    endpoint.Endpoint
	MeEndpoint       endpoint.Endpoint
	LogoutEndpoint   endpoint.Endpoint
	RefreshEndpoint  endpoint.Endpoint
}

func New(svc authservice.Service, logger log.Logger) Set {
	var registerEndpoint endpoint.Endpoint
	{
		registerEndpoint = MakeRegisterEndpoint(svc)
		registerEndpoint = LoggingMiddleware(log.With(logger, "method", "Register"))(registerEndpoint)
	}

	var loginEndpoint endpoint.Endpoint
	{
		loginEndpoint = MakeLoginEndpoint(svc)
		loginEndpoint = LoggingMiddleware(log.With(logger, "method", "Login"))(loginEndpoint)
	}

	var meEndpoint endpoint.Endpoint
	{
		meEndpoint = MakeMeEndpoint(svc)
		meEndpoint = LoggingMiddleware(log.With(logger, "method", "Me"))(meEndpoint)
	}

	var logoutEndpoint endpoint.Endpoint
	{
		logoutEndpoint = MakeLogoutEndpoint(svc)
		logoutEndpoint = LoggingMiddleware(log.With(logger, "method", "Logout"))(logoutEndpoint)
	}

	var refreshEndpoint endpoint.Endpoint
	{
		refreshEndpoint = MakeRefreshEndpoint(svc)
		refreshEndpoint = LoggingMiddleware(log.With(logger, "method", "Refresh"))(refreshEndpoint)
	}

	return Set{
		RegisterEndpoint: registerEndpoint,
		LoginEndpoint:    loginEndpoint,
		MeEndpoint:       meEndpoint,
		LogoutEndpoint:   logoutEndpoint,
		RefreshEndpoint:  refreshEndpoint,
	}
}

func MakeRegisterEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(RegisterRequest)
		user, tokens, err := s.Register(ctx, req.Name, req.Email, req.Password)
		return RegisterResponse{User: user, Tokens: tokens, Err: err}, nil
	}
}

func MakeLoginEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(LoginRequest)
		user, tokens, err := s.Login(ctx, req.Email, req.Password)
		return LoginResponse{User: user, Tokens: tokens, Err: err}, nil
	}
}

func MakeMeEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		auth, err := accessClaims(ctx)
		if err != nil {
			return MeResponse{Err: err}, nil
		}

		_ = request.(MeRequest)
		user, err := s.Me(ctx, auth.UserID)
		return MeResponse{User: user, Err: err}, nil
	}
}

func MakeLogoutEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		auth, err := accessClaims(ctx)
		if err != nil {
			return LogoutResponse{Err: err}, nil
		}

		_ = request.(LogoutRequest)
		ok, err := s.Logout(ctx, auth.AccessUUID)
		return LogoutResponse{Success: ok, Err: err}, nil
	}
}

func MakeRefreshEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		claims, ok := ctx.Value(kitjwt.JWTClaimsContextKey).(stdjwt.MapClaims)
		if !ok {
			return RefreshResponse{Err: authsvc.ErrClaimsMissing}, nil
		}

		accessUUID, ok := claims["access_uuid"].(string)
		if !ok {
			return RefreshResponse{Err: authsvc.ErrClaimsInvalid}, nil
		}

		refreshUUID, ok := claims["refresh_uuid"].(string)
		if !ok {
			return RefreshResponse{Err: authsvc.ErrClaimsInvalid}, nil
		}

		userID, err := strconv.ParseUint(fmt.Sprintf("%.f", claims["user_id"]), 10, 64)
		if err != nil {
			return RefreshResponse{Err: authsvc.ErrClaimsInvalid}, nil
		}

		_ = request.(RefreshRequest)
		tokens, err := s.Refresh(ctx, accessUUID, refreshUUID, userID)
		return RefreshResponse{Tokens: tokens, Err: err}, nil
	}
}

type accessAuth struct {
	AccessUUID string
	UserID     uint64
}

func accessClaims(ctx context.Context) (accessAuth, error) {
	claims, ok := ctx.Value(kitjwt.JWTClaimsContextKey).(stdjwt.MapClaims)
	if !ok {
		return accessAuth{}, authsvc.ErrClaimsMissing
	}

	uuid, ok := claims["uuid"].(string)
	if !ok {
		return accessAuth{}, authsvc.ErrClaimsInvalid
	}

	userID, err := strconv.ParseUint(fmt.Sprintf("%.f", claims["user_id"]), 10, 64)
	if err != nil {
		return accessAuth{}, authsvc.ErrClaimsInvalid
	}

	return accessAuth{AccessUUID: uuid, UserID: userID}, nil
}

var (
	_ endpoint.Failer = RegisterResponse{}
	_ endpoint.Failer = LoginResponse{}
	_ endpoint.Failer = MeResponse{}
	_ endpoint.Failer = LogoutResponse{}
	_ endpoint.Failer = RefreshResponse{}
)

// SessionPayload is the data field of register and login responses.
type SessionPayload struct {
	Token   string       `json:"token"`
	Refresh string       `json:"refresh"`
	User    usersvc.User `json:"user"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	User   usersvc.User       `json:"user"`
	Tokens authservice.Tokens `json:"tokens"`
	Err    error              `json:"-"`
}

func (r RegisterResponse) Failed() error { return r.Err }

func (r RegisterResponse) Data() interface{} {
	return SessionPayload{Token: r.Tokens.Access, Refresh: r.Tokens.Refresh, User: r.User}
}

func (r RegisterResponse) StatusCode() int { return http.StatusCreated }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User   usersvc.User       `json:"user"`
	Tokens authservice.Tokens `json:"tokens"`
	Err    error              `json:"-"`
}

func (r LoginResponse) Failed() error { return r.Err }

func (r LoginResponse) Data() interface{} {
	return SessionPayload{Token: r.Tokens.Access, Refresh: r.Tokens.Refresh, User: r.User}
}

type MeRequest struct{}

type MeResponse struct {
	User usersvc.User `json:"user"`
	Err  error        `json:"-"`
}

func (r MeResponse) Failed() error { return r.Err }

func (r MeResponse) Data() interface{} { return r.User }

type LogoutRequest struct{}

type LogoutResponse struct {
	Success bool  `json:"success"`
	Err     error `json:"-"`
}

func (r LogoutResponse) Failed() error { return r.Err }

func (r LogoutResponse) Data() interface{} {
	return map[string]string{"message": "Logged out successfully"}
}

type RefreshRequest struct{}

type RefreshResponse struct {
	Tokens authservice.Tokens `json:"tokens"`
	Err    error              `json:"-"`
}

func (r RefreshResponse) Failed() error { return r.Err }

func (r RefreshResponse) Data() interface{} { return r.Tokens }

var (
	_ envelope.Dataer      = RegisterResponse{}
	_ envelope.StatusCoder = RegisterResponse{}
)
