package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func sessionPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "session.json")
}

func TestSessionPersistsAcrossRestarts(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()
	path := sessionPath(t)

	first := NewSession(path)
	if err := first.Register(ctx, c, "Jordan", "jordan@example.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !first.Authenticated() {
		t.Fatal("expected an authenticated session")
	}

	// A new process: token pair comes back from disk, the user does not.
	second := NewSession(path)
	if second.Token != first.Token || second.Refresh != first.Refresh {
		t.Fatal("token pair not persisted")
	}
	if second.User != nil {
		t.Fatal("user record should not be persisted")
	}

	if err := second.Resolve(ctx, c); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !second.Authenticated() || second.User.Email != "jordan@example.com" {
		t.Errorf("session = %+v", second)
	}
}

func TestSessionResolveDiscardsStaleToken(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()
	path := sessionPath(t)

	s := NewSession(path)
	if err := s.Register(ctx, c, "Jordan", "jordan@example.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Revoke the session server-side, then resolve from disk as a restart
	// would.
	if err := c.Logout(ctx, s.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	restarted := NewSession(path)
	err := restarted.Resolve(ctx, c)
	if !IsUnauthorized(err) {
		t.Errorf("Resolve: got %v, want an unauthorized API error", err)
	}

	if restarted.Token != "" || restarted.Authenticated() {
		t.Error("stale token not discarded")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("session file not removed")
	}
}

func TestSessionRotate(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()
	path := sessionPath(t)

	s := NewSession(path)
	if err := s.Rotate(ctx, c); err != ErrNoSession {
		t.Fatalf("Rotate without session: got %v, want ErrNoSession", err)
	}

	if err := s.Register(ctx, c, "Jordan", "jordan@example.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	oldToken, oldRefresh := s.Token, s.Refresh

	if err := s.Rotate(ctx, c); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if s.Token == oldToken || s.Refresh == oldRefresh {
		t.Error("rotation did not replace the pair")
	}

	// New pair works, old access token is dead.
	if err := s.Resolve(ctx, c); err != nil {
		t.Fatalf("Resolve after rotate: %v", err)
	}
	if _, err := c.Me(ctx, oldToken); !IsUnauthorized(err) {
		t.Errorf("old token: got %v, want an unauthorized API error", err)
	}

	// The persisted pair matches the rotated one.
	reloaded := NewSession(path)
	if reloaded.Token != s.Token || reloaded.Refresh != s.Refresh {
		t.Error("rotated pair not persisted")
	}

	// A consumed refresh token ends the session.
	s.Refresh = oldRefresh
	if err := s.Rotate(ctx, c); !IsUnauthorized(err) {
		t.Fatalf("replayed rotate: got %v, want an unauthorized API error", err)
	}
	if s.Authenticated() || s.Token != "" {
		t.Error("replayed rotate left session state behind")
	}
}

func TestSessionLogoutClearsLocallyFirst(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()
	path := sessionPath(t)

	s := NewSession(path)
	if err := s.Login(ctx, c, "nobody@example.com", "wrong"); !IsUnauthorized(err) {
		t.Fatalf("Login: got %v, want an unauthorized API error", err)
	}
	if s.Authenticated() {
		t.Fatal("failed login left an authenticated session")
	}

	if err := s.Register(ctx, c, "Jordan", "jordan@example.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Logout(ctx, c); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if s.Token != "" || s.User != nil {
		t.Error("logout left session state behind")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("session file not removed")
	}

	// A second logout is a no-op.
	if err := s.Logout(ctx, c); err != nil {
		t.Errorf("second logout: %v", err)
	}
}
