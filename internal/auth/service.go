// Package auth owns the session: sign-up/sign-in/sign-out against the
// backend, resolution of the current identity, and the OAuth deep-link
// callback flow.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/code-with-zain-hunzai/kekar-go/internal/backend"
	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
	"github.com/code-with-zain-hunzai/kekar-go/internal/session"
)

// Service resolves and mutates the authenticated session. One instance
// per app session; gateways share it.
type Service struct {
	be       backend.Backend
	snaps    session.Store
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewService creates the session service.
func NewService(be backend.Backend, snaps session.Store, logger zerolog.Logger) *Service {
	return &Service{
		be:       be,
		snaps:    snaps,
		validate: validator.New(),
		logger:   logger,
	}
}

// SignUpParams are the validated inputs for registration.
type SignUpParams struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Name     string `validate:"required"`
}

// SignInParams are the validated inputs for password sign-in.
type SignInParams struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// SignUp registers a new user and persists the identity snapshot.
func (s *Service) SignUp(ctx context.Context, p SignUpParams) (*models.Identity, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid sign-up parameters: %w", err)
	}

	ident, err := s.be.SignUp(ctx, p.Email, p.Password, p.Name)
	if err != nil {
		return nil, err
	}
	s.remember(*ident)
	return ident, nil
}

// SignIn authenticates an existing user and persists the identity
// snapshot.
func (s *Service) SignIn(ctx context.Context, p SignInParams) (*models.Identity, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid sign-in parameters: %w", err)
	}

	ident, err := s.be.SignIn(ctx, p.Email, p.Password)
	if err != nil {
		return nil, err
	}
	s.remember(*ident)
	return ident, nil
}

// SignOut ends the session and clears the persisted snapshot.
func (s *Service) SignOut(ctx context.Context) error {
	if err := s.be.SignOut(ctx); err != nil {
		return err
	}
	if err := s.snaps.Clear(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear identity snapshot")
	}
	return nil
}

// Current resolves the identity bound to the active session. It never
// errors: with no session or an unconfigured backend it reports false,
// and on a transient backend failure it falls back to the last-known
// snapshot so the caller can keep displaying something.
func (s *Service) Current(ctx context.Context) (*models.Identity, bool) {
	ident, err := s.be.CurrentIdentity(ctx)
	if err == nil {
		s.remember(*ident)
		return ident, true
	}

	if errors.Is(err, backend.ErrAuthRequired) || errors.Is(err, backend.ErrNotConfigured) {
		return nil, false
	}

	if snap, ok := s.snaps.Load(); ok {
		s.logger.Debug().Err(err).Msg("identity resolution failed, using snapshot")
		return snap, true
	}
	s.logger.Debug().Err(err).Msg("identity resolution failed, no snapshot")
	return nil, false
}

// Snapshot returns the last persisted identity without touching the
// network. Display-only; the session may have expired since.
func (s *Service) Snapshot() (*models.Identity, bool) {
	return s.snaps.Load()
}

// HandleCallback completes an OAuth flow from the deep-link URL
// delivered to the app, exchanging its tokens for a session.
func (s *Service) HandleCallback(ctx context.Context, rawURL string) (*models.Identity, error) {
	tokens, err := ParseCallbackFragment(rawURL)
	if err != nil {
		return nil, err
	}

	ident, err := s.be.ExchangeSession(ctx, tokens.AccessToken, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	s.remember(*ident)
	return ident, nil
}

func (s *Service) remember(ident models.Identity) {
	if err := s.snaps.Save(ident); err != nil {
		s.logger.Warn().Err(err).Str("user_id", ident.ID).Msg("failed to persist identity snapshot")
	}
}
