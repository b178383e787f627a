// Package auth provides caller authentication and the ownership gate
// for the SMP server.
//
// Two credential forms are accepted: HTTP Basic (user name + password,
// checked against a bcrypt hash in the user store) and a bearer token
// (JWT whose subject is the user id). Authorization beyond
// authentication is purely ownership-based: a caller may mutate a
// service group only if it owns it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sirosfoundation/go-smp/internal/storage"
)

// Sentinel errors for authentication and authorization failures.
var (
	// ErrNoCredentials indicates the request carried neither Basic nor
	// bearer credentials.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates the credentials did not match a
	// known user.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotOwner indicates an authenticated caller that does not own
	// the addressed resource.
	ErrNotOwner = errors.New("caller does not own this resource")
)

// BearerConfig holds bearer token validation settings
type BearerConfig struct {
	// Secret is the HMAC key for HS256 tokens. Bearer auth is disabled
	// when empty.
	Secret []byte

	// Issuer and Audience are enforced when non-empty
	Issuer   string
	Audience string
}

// Authenticator resolves request credentials to a user account
type Authenticator struct {
	users  storage.UserStore
	bearer BearerConfig
	logger *slog.Logger
}

// NewAuthenticator creates an authenticator backed by the user store
func NewAuthenticator(users storage.UserStore, bearer BearerConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{users: users, bearer: bearer, logger: logger}
}

// Authenticate resolves the request's credentials to a user.
// Basic credentials are tried first, then a bearer token.
func (a *Authenticator) Authenticate(r *http.Request) (*storage.User, error) {
	if name, password, ok := r.BasicAuth(); ok {
		return a.authenticateBasic(r.Context(), name, password)
	}
	if token := extractBearerToken(r); token != "" {
		return a.authenticateBearer(r.Context(), token)
	}
	return nil, ErrNoCredentials
}

func (a *Authenticator) authenticateBasic(ctx context.Context, name, password string) (*storage.User, error) {
	user, err := a.users.GetUserByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", name, err)
	}
	if user == nil {
		// Burn a comparison anyway so user existence is not observable
		// through response timing.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000"), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (a *Authenticator) authenticateBearer(ctx context.Context, token string) (*storage.User, error) {
	if len(a.bearer.Secret) == 0 {
		return nil, ErrInvalidCredentials
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if a.bearer.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.bearer.Issuer))
	}
	if a.bearer.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(a.bearer.Audience))
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return a.bearer.Secret, nil
	}, parserOpts...)
	if err != nil || !parsed.Valid {
		a.logger.Debug("bearer token rejected", "error", err)
		return nil, ErrInvalidCredentials
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := a.users.GetUser(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", sub, err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// OwnershipGate checks that an authenticated caller owns a service
// group before a mutation is allowed through.
type OwnershipGate struct{}

// Verify returns ErrNotOwner unless user owns the service group.
func (OwnershipGate) Verify(sg *storage.ServiceGroup, user *storage.User) error {
	if sg == nil || user == nil || sg.OwnerID != user.ID {
		return ErrNotOwner
	}
	return nil
}
