// Package auth checks dashboard credentials. Callers only see the Verifier
// interface, so the fixed admin pair can be swapped for a bcrypt hash or an
// identity provider through configuration.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	cfg "labeladmin/src/configuration"
)

const (
	AdminUsername = "admin"
	AdminPassword = "P@ssw0rd"

	ModeStatic = "static"
	ModeBcrypt = "bcrypt"
	ModeOIDC   = "oidc"
)

// ErrInvalidCredentials never tells which of the two fields was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

type (
	// Verifier returns nil on a match, ErrInvalidCredentials on a mismatch and
	// any other error when the check itself could not be performed.
	Verifier interface {
		Verify(ctx context.Context, username, password string) error
	}

	StaticVerifier struct {
		username string
		password string
	}

	HashVerifier struct {
		username string
		hash     []byte
	}
)

// NewStaticVerifier compares against the given pair exactly. Empty values fall
// back to the built-in admin credentials.
func NewStaticVerifier(username, password string) *StaticVerifier {
	if username == "" {
		username = AdminUsername
	}
	if password == "" {
		password = AdminPassword
	}
	return &StaticVerifier{username: username, password: password}
}

func (s *StaticVerifier) Verify(_ context.Context, username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if userOK && passOK {
		return nil
	}
	return ErrInvalidCredentials
}

func NewHashVerifier(username, hash string) (*HashVerifier, error) {
	if username == "" {
		username = AdminUsername
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("auth: password hash: %w", err)
	}
	return &HashVerifier{username: username, hash: []byte(hash)}, nil
}

func (h *HashVerifier) Verify(_ context.Context, username, password string) error {
	err := bcrypt.CompareHashAndPassword(h.hash, []byte(password))
	if username != h.username || errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCredentials
	}
	return err
}

// HashPassword produces a value for AUTH_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// NewVerifier builds the verifier selected by AUTH_MODE.
func NewVerifier(ctx context.Context, config cfg.AuthProperties) (Verifier, error) {
	switch config.Mode {
	case "", ModeStatic:
		return NewStaticVerifier(config.Username, config.Password), nil
	case ModeBcrypt:
		return NewHashVerifier(config.Username, config.PasswordHash)
	case ModeOIDC:
		return NewOIDCVerifier(ctx, config)
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", config.Mode)
	}
}
