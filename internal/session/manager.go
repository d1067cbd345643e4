package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-client/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// Session describes the authenticated storefront session.
type Session struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Source is the capability handed to components that gate on authentication.
// A nil session with a nil error means "not logged in".
type Source interface {
	Current(ctx context.Context) (*Session, error)
}

// LogoutHook runs after the session ends, before Logout returns.
type LogoutHook func(ctx context.Context)

type accessClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Manager owns the session lifecycle: login validates and stores the bearer
// token, Current re-checks expiry on every read, and Logout clears the token
// and notifies registered hooks.
type Manager struct {
	store TokenStore
	cfg   config.SessionConfig
	logg  *logger.Logger
	now   func() time.Time

	mu    sync.Mutex
	hooks []LogoutHook
}

func NewManager(store TokenStore, cfg config.SessionConfig, logg *logger.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("token store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Manager{
		store: store,
		cfg:   cfg,
		logg:  logg,
		now:   time.Now,
	}, nil
}

// OnLogout registers a hook fired when the session ends. The cart store uses
// this to clear its snapshot.
func (m *Manager) OnLogout(hook LogoutHook) {
	if hook == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Login validates the bearer token and persists it for subsequent requests.
func (m *Manager) Login(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	session, err := m.parse(token)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(0)
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(m.now())
	}
	if err := m.store.Save(ctx, token, ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist session token")
	}

	logCtx := m.logg.WithUserID(ctx, session.UserID)
	m.logg.Info(logCtx, "session established")
	return session, nil
}

// Current returns the active session, or (nil, nil) when unauthenticated.
// Expired tokens are cleared eagerly so the next read is cheap.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	token, err := m.store.Load(ctx)
	if errors.Is(err, ErrNoToken) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load session token")
	}

	session, parseErr := m.parse(token)
	if parseErr != nil {
		m.logg.Warn(ctx, "stored session token no longer valid")
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.logg.Error(ctx, "failed to clear stale session token", clearErr)
		}
		return nil, nil
	}
	return session, nil
}

// BearerToken implements the API client's token source.
func (m *Manager) BearerToken(ctx context.Context) (string, error) {
	session, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", nil
	}
	return session.Token, nil
}

// Logout ends the session and notifies hooks regardless of prior state.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear session token")
	}

	m.mu.Lock()
	hooks := make([]LogoutHook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx)
	}

	m.logg.Info(ctx, "session ended")
	return nil
}

func (m *Manager) parse(token string) (*Session, error) {
	claims := &accessClaims{}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.cfg.JWTIssuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.cfg.JWTIssuer))
	}

	if m.cfg.JWTSecret != "" {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
			}
			return []byte(m.cfg.JWTSecret), nil
		}, parserOpts...)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeAuthRequired, err, "invalid session token")
		}
	} else {
		// Without a shared secret the client can only check structure and
		// expiry; the server remains the authority on signature validity.
		parser := jwt.NewParser(parserOpts...)
		if _, _, err := parser.ParseUnverified(token, claims); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeAuthRequired, err, "invalid session token")
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(m.now()) {
			return nil, pkgerrors.New(pkgerrors.CodeAuthRequired, "session token expired")
		}
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}

	session := &Session{
		UserID: userID,
		Token:  token,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
