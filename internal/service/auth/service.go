package auth

import (
	"context"
	"log"
	"strings"
)

// Credentials is a submitted login form.
type Credentials struct {
	Email    string
	Password string
}

// Service runs the login check against a Verifier.
type Service struct {
	verifier Verifier
}

// NewService creates the login service.
func NewService(verifier Verifier) *Service {
	return &Service{verifier: verifier}
}

// Login returns the user id bound to creds or ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, creds Credentials) (string, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return "", ErrInvalidCredentials
	}

	userID, err := s.verifier.Verify(ctx, creds.Email, creds.Password)
	if err != nil {
		log.Printf("[auth] login rejected")
		return "", ErrInvalidCredentials
	}

	log.Printf("[auth] login succeeded user=%s", userID)
	return userID, nil
}
