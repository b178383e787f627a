package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/internal/storage/memory"
)

func seedUser(t *testing.T, store storage.UserStore, id, name, password string) *storage.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &storage.User{ID: id, UserName: name, PasswordHash: string(hash)}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func TestAuthenticateBasic(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "user-1", "alpha", "s3cret")
	a := NewAuthenticator(store, BearerConfig{}, nil)

	tests := []struct {
		name     string
		user     string
		password string
		wantErr  error
	}{
		{"valid credentials", "alpha", "s3cret", nil},
		{"wrong password", "alpha", "wrong", ErrInvalidCredentials},
		{"unknown user", "nobody", "s3cret", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.SetBasicAuth(tt.user, tt.password)

			user, err := a.Authenticate(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", user.ID)
		})
	}
}

func TestAuthenticateNoCredentials(t *testing.T) {
	a := NewAuthenticator(memory.NewStore(), BearerConfig{}, nil)

	r := httptest.NewRequest("GET", "/", nil)
	_, err := a.Authenticate(r)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestAuthenticateBearer(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "user-1", "alpha", "s3cret")
	secret := []byte("0123456789abcdef")
	a := NewAuthenticator(store, BearerConfig{Secret: secret, Issuer: "smp-test"}, nil)

	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			"valid token",
			signToken(t, secret, jwt.MapClaims{"sub": "user-1", "iss": "smp-test", "exp": exp}),
			nil,
		},
		{
			"wrong signing key",
			signToken(t, []byte("other-key"), jwt.MapClaims{"sub": "user-1", "iss": "smp-test", "exp": exp}),
			ErrInvalidCredentials,
		},
		{
			"wrong issuer",
			signToken(t, secret, jwt.MapClaims{"sub": "user-1", "iss": "someone-else", "exp": exp}),
			ErrInvalidCredentials,
		},
		{
			"expired",
			signToken(t, secret, jwt.MapClaims{"sub": "user-1", "iss": "smp-test", "exp": time.Now().Add(-time.Hour).Unix()}),
			ErrInvalidCredentials,
		},
		{
			"unknown subject",
			signToken(t, secret, jwt.MapClaims{"sub": "user-9", "iss": "smp-test", "exp": exp}),
			ErrInvalidCredentials,
		},
		{
			"missing subject",
			signToken(t, secret, jwt.MapClaims{"iss": "smp-test", "exp": exp}),
			ErrInvalidCredentials,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.Header.Set("Authorization", "Bearer "+tt.token)

			user, err := a.Authenticate(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", user.ID)
		})
	}
}

func TestAuthenticateBearerDisabledWithoutSecret(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "user-1", "alpha", "s3cret")
	a := NewAuthenticator(store, BearerConfig{}, nil)

	token := signToken(t, []byte("any-key"), jwt.MapClaims{"sub": "user-1"})
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	_, err := a.Authenticate(r)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestOwnershipGate(t *testing.T) {
	var gate OwnershipGate
	owner := &storage.User{ID: "user-1"}
	other := &storage.User{ID: "user-2"}
	sg := &storage.ServiceGroup{ID: "g", OwnerID: "user-1"}

	assert.NoError(t, gate.Verify(sg, owner))
	assert.ErrorIs(t, gate.Verify(sg, other), ErrNotOwner)
	assert.ErrorIs(t, gate.Verify(nil, owner), ErrNotOwner)
	assert.ErrorIs(t, gate.Verify(sg, nil), ErrNotOwner)
}
