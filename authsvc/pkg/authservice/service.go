package authservice

import (
	"context"
	"errors"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/taskdeck/taskdeck/authsvc"
	"github.com/taskdeck/taskdeck/authsvc/inmem"
	"github.com/taskdeck/taskdeck/usersvc"
	stduuid "github.com/twinj/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Tokens is the pair handed to the client on register, login and refresh.
type Tokens struct {
	Access  string `json:"token"`
	Refresh string `json:"refresh"`
}

type Service interface {
	Register(ctx context.Context, name, email, password string) (usersvc.User, Tokens, error)
	Login(ctx context.Context, email, password string) (usersvc.User, Tokens, error)
	Me(ctx context.Context, userID uint64) (usersvc.User, error)
	Logout(ctx context.Context, accessUUID string) (bool, error)
	Refresh(ctx context.Context, accessUUID, refreshUUID string, userID uint64) (Tokens, error)
}

func New(u usersvc.UserRepository, t Tokenizer, c inmem.Client, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(u, t, c)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	users     usersvc.UserRepository
	tokenizer Tokenizer
	client    inmem.Client
}

func NewBasicService(u usersvc.UserRepository, t Tokenizer, c inmem.Client) Service {
	return &basicService{users: u, tokenizer: t, client: c}
}

func (s *basicService) Register(_ context.Context, name, email, password string) (usersvc.User, Tokens, error) {
	var v authsvc.ValidationError
	if strings.TrimSpace(name) == "" {
		v.Add("name", "Name is required")
	}
	if !strings.Contains(email, "@") {
		v.Add("email", "Please include a valid email")
	}
	if len(password) < 6 {
		v.Add("password", "Password must be 6 or more characters")
	}
	if err := v.OrNil(); err != nil {
		return usersvc.User{}, Tokens{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return usersvc.User{}, Tokens{}, err
	}

	user, err := s.users.Create(name, email, string(hash))
	if err != nil {
		return usersvc.User{}, Tokens{}, err
	}

	tokens, err := s.issueTokens(user.ID)
	return user, tokens, err
}

func (s *basicService) Login(_ context.Context, email, password string) (usersvc.User, Tokens, error) {
	if email == "" || password == "" {
		return usersvc.User{}, Tokens{}, authsvc.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, usersvc.ErrUserNotFound) {
			return usersvc.User{}, Tokens{}, authsvc.ErrInvalidCredentials
		}
		return usersvc.User{}, Tokens{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return usersvc.User{}, Tokens{}, authsvc.ErrInvalidCredentials
	}

	tokens, err := s.issueTokens(user.ID)
	return user, tokens, err
}

func (s *basicService) Me(_ context.Context, userID uint64) (usersvc.User, error) {
	if userID == 0 {
		return usersvc.User{}, authsvc.ErrInvalidArgument
	}
	return s.users.Find(userID)
}

func (s *basicService) Logout(_ context.Context, accessUUID string) (bool, error) {
	if accessUUID == "" {
		return false, authsvc.ErrInvalidArgument
	}

	ruuid := stduuid.NewV5(stduuid.NameSpaceURL, accessUUID).String()

	var err error
	{
		err = s.client.Delete(accessUUID)
		if err != nil {
			return false, err
		}
		err = s.client.Delete(ruuid)
		if err != nil {
			return false, err
		}
	}

	return true, nil
}

func (s *basicService) Refresh(_ context.Context, accessUUID, refreshUUID string, userID uint64) (Tokens, error) {
	if accessUUID == "" || refreshUUID == "" || userID == 0 {
		return Tokens{}, authsvc.ErrInvalidArgument
	}

	// A refresh token that was logged out or already rotated is gone from
	// the store and must not mint a new pair.
	if err := s.client.Get(refreshUUID); err != nil {
		return Tokens{}, err
	}

	s.client.Delete(accessUUID)
	s.client.Delete(refreshUUID)

	return s.issueTokens(userID)
}

func (s *basicService) issueTokens(userID uint64) (Tokens, error) {
	at, rt, err := s.tokenizer.Generate(userID)
	if err != nil {
		return Tokens{}, err
	}

	s.client.Put(at.UUID, []byte(at.Hash))
	s.client.Put(rt.RefreshUUID, []byte(rt.Hash))

	return Tokens{Access: at.Hash, Refresh: rt.Hash}, nil
}
