package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any email/password mismatch.
var ErrInvalidCredentials = errors.New("invalid credentials")

// InvalidCredentialsMessage is what the login form shows on a mismatch.
const InvalidCredentialsMessage = "Invalid credentials"

// Verifier checks submitted credentials and returns the matching user id.
type Verifier interface {
	Verify(ctx context.Context, email, password string) (string, error)
}

// StaticVerifier accepts exactly one configured account.
type StaticVerifier struct {
	email        string
	passwordHash []byte
	userID       string
}

// NewStaticVerifier hashes password with bcrypt and returns a verifier for it.
func NewStaticVerifier(email, password, userID string) (*StaticVerifier, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return NewStaticVerifierFromHash(email, hash, userID)
}

// NewStaticVerifierFromHash builds a verifier from an existing bcrypt hash.
func NewStaticVerifierFromHash(email, passwordHash, userID string) (*StaticVerifier, error) {
	email = normalizeEmail(email)
	if email == "" || userID == "" {
		return nil, fmt.Errorf("static verifier needs an email and a user id")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}

	return &StaticVerifier{
		email:        email,
		passwordHash: []byte(passwordHash),
		userID:       userID,
	}, nil
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(_ context.Context, email, password string) (string, error) {
	emailOK := subtle.ConstantTimeCompare([]byte(normalizeEmail(email)), []byte(v.email)) == 1
	// always run bcrypt so a wrong email costs as much as a wrong password
	passwordErr := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password))

	if !emailOK || passwordErr != nil {
		return "", ErrInvalidCredentials
	}
	return v.userID, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
