package session

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-client/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()
	claims := accessClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(NewMemoryStore(), config.SessionConfig{JWTSecret: testSecret},
		logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return mgr
}

func TestLoginAndCurrent(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	token := mintToken(t, "user-1", time.Now().Add(time.Hour))

	session, err := mgr.Login(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.UserID != "user-1" {
		t.Fatalf("unexpected user id %q", session.UserID)
	}

	current, err := mgr.Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current == nil || current.Token != token {
		t.Fatalf("expected stored session to be current")
	}
}

func TestCurrentWithoutLoginIsNil(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	session, err := mgr.Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session != nil {
		t.Fatalf("expected nil session before login")
	}
}

func TestLoginRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	token := mintToken(t, "user-1", time.Now().Add(-time.Hour))

	_, err := mgr.Login(context.Background(), token)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeAuthRequired {
		t.Fatalf("expected auth required for expired token, got %v", err)
	}
}

func TestCurrentClearsExpiredToken(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	mgr, err := NewManager(store, config.SessionConfig{JWTSecret: testSecret},
		logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := mintToken(t, "user-1", time.Now().Add(time.Hour))
	if _, err := mgr.Login(context.Background(), token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Jump past expiry.
	mgr.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	session, err := mgr.Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session != nil {
		t.Fatalf("expired session must read as logged out")
	}
	if _, err := store.Load(context.Background()); err != ErrNoToken {
		t.Fatalf("expected stale token to be cleared, got %v", err)
	}
}

func TestLogoutFiresHooks(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	token := mintToken(t, "user-1", time.Now().Add(time.Hour))
	if _, err := mgr.Login(context.Background(), token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fired := 0
	mgr.OnLogout(func(ctx context.Context) { fired++ })
	mgr.OnLogout(func(ctx context.Context) { fired++ })

	if err := mgr.Logout(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fired != 2 {
		t.Fatalf("expected both hooks to fire, got %d", fired)
	}

	session, err := mgr.Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session != nil {
		t.Fatalf("expected no session after logout")
	}
}

func TestBearerTokenEmptyWhenLoggedOut(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	token, err := mgr.BearerToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty bearer token, got %q", token)
	}
}

func TestLoginRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	token := mintToken(t, "user-1", time.Now().Add(time.Hour)) + "x"

	if _, err := mgr.Login(context.Background(), token); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}
}
