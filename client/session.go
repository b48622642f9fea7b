package client

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/taskdeck/taskdeck/usersvc"
)

// ErrNoSession is returned when an operation needs stored credentials and
// none are present.
var ErrNoSession = errors.New("no stored session")

// Session holds the authenticated identity on the client side. The token pair
// survives restarts through a small JSON file; the user record does not, and
// is re-resolved against the server on load.
type Session struct {
	path string

	Token   string
	Refresh string
	User    *usersvc.User
}

type sessionFile struct {
	Token   string `json:"token"`
	Refresh string `json:"refresh"`
}

// NewSession loads any persisted token pair from path. A missing or unreadable
// file simply yields an unauthenticated session.
func NewSession(path string) *Session {
	s := &Session{path: path}

	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return s
	}

	var f sessionFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return s
	}

	s.Token = f.Token
	s.Refresh = f.Refresh
	return s
}

func (s *Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Resolve exchanges a persisted token for the current user record. A token the
// server no longer honors is discarded, reverting to unauthenticated; that is
// the only transition a failed resolution may cause.
func (s *Session) Resolve(ctx context.Context, c *Client) error {
	if s.Token == "" {
		return nil
	}

	user, err := c.Me(ctx, s.Token)
	if err != nil {
		s.Invalidate()
		return err
	}

	s.User = &user
	return nil
}

func (s *Session) Register(ctx context.Context, c *Client, name, email, password string) error {
	payload, err := c.Register(ctx, name, email, password)
	if err != nil {
		return err
	}

	s.Token = payload.Token
	s.Refresh = payload.Refresh
	s.User = &payload.User
	return s.persist()
}

func (s *Session) Login(ctx context.Context, c *Client, email, password string) error {
	payload, err := c.Login(ctx, email, password)
	if err != nil {
		return err
	}

	s.Token = payload.Token
	s.Refresh = payload.Refresh
	s.User = &payload.User
	return s.persist()
}

// Rotate exchanges the stored refresh token for a new pair. A refresh token
// the server no longer honors ends the session.
func (s *Session) Rotate(ctx context.Context, c *Client) error {
	if s.Refresh == "" {
		return ErrNoSession
	}

	tokens, err := c.Refresh(ctx, s.Refresh)
	if err != nil {
		if IsUnauthorized(err) {
			s.Invalidate()
		}
		return err
	}

	s.Token = tokens.Access
	s.Refresh = tokens.Refresh
	return s.persist()
}

// Logout revokes the session server-side when possible. The local session is
// cleared unconditionally, even when the server call fails.
func (s *Session) Logout(ctx context.Context, c *Client) error {
	token := s.Token
	s.Invalidate()

	if token == "" {
		return nil
	}
	return c.Logout(ctx, token)
}

// Invalidate drops the identity and the persisted token pair. Store layers
// call this on any unauthorized response.
func (s *Session) Invalidate() {
	s.Token = ""
	s.Refresh = ""
	s.User = nil
	os.Remove(s.path)
}

func (s *Session) persist() error {
	raw, err := json.Marshal(sessionFile{Token: s.Token, Refresh: s.Refresh})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return ioutil.WriteFile(s.path, raw, 0600)
}
