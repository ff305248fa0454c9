// Package confirm implements the two-step protocol for destructive
// actions: a client first asks for a short-lived single-use token bound to
// the record it wants to delete, then presents that token with the delete.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token is unknown, expired, already
// used, or bound to a different record.
var ErrInvalidToken = errors.New("confirmation token is invalid or expired")

// Store keeps issued tokens until they are taken or expire.
type Store interface {
	// Put records token as confirming subject for ttl.
	Put(ctx context.Context, token, subject string, ttl time.Duration) error
	// Take removes token and returns its subject, or ErrInvalidToken.
	Take(ctx context.Context, token string) (string, error)
}

// Token is what a client receives from Issue.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service issues and redeems tokens.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewService(store Store, ttl time.Duration) *Service {
	return &Service{store: store, ttl: ttl, now: time.Now}
}

// Subject names the record a token confirms, e.g. "student:<id>".
func Subject(kind, id string) string {
	return kind + ":" + id
}

// Issue creates a token confirming subject.
func (s *Service) Issue(ctx context.Context, subject string) (Token, error) {
	token := uuid.NewString()
	if err := s.store.Put(ctx, token, subject, s.ttl); err != nil {
		return Token{}, fmt.Errorf("confirm.Issue: %w", err)
	}
	return Token{Token: token, ExpiresAt: s.now().Add(s.ttl).UTC()}, nil
}

// Redeem consumes token and checks that it was issued for subject.
// A token is spent even when the subject does not match.
func (s *Service) Redeem(ctx context.Context, token, subject string) error {
	if token == "" {
		return ErrInvalidToken
	}
	got, err := s.store.Take(ctx, token)
	if err != nil {
		return err
	}
	if got != subject {
		return ErrInvalidToken
	}
	return nil
}
