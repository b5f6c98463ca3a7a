package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"skillmap/pkg/auth"
	"skillmap/pkg/metrics"
	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
	"skillmap/pkg/visibility"
)

type AuthService struct {
	users   *UserService
	tokens  *auth.TokenManager
	events  *EventBus
	metrics *metrics.Metrics
	log     *zap.Logger

	checkPassword func(password, hash string) bool
}

func NewAuthService(users *UserService, tokens *auth.TokenManager, events *EventBus, m *metrics.Metrics, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:         users,
		tokens:        tokens,
		events:        events,
		metrics:       m,
		log:           log,
		checkPassword: auth.CheckPasswordHash,
	}
}

var errInvalidCredentials = fmt.Errorf("%w: invalid email or password", shared.ErrUnauthorized)

// Login checks the credentials and issues a session token. Unknown emails and wrong
// passwords produce the same error and both pay for a bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, req *ontology.LoginRequest) (*ontology.LoginResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, shared.ErrNotFound) {
		s.checkPassword(req.Password, auth.DummyHash())
		s.metrics.RecordAuth("failure")
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.checkPassword(req.Password, user.PasswordHash) {
		s.metrics.RecordAuth("failure")
		s.log.Info("login rejected", zap.String("user_id", user.ID))
		return nil, errInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.users.touchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	token, expiresAt, err := s.tokens.Generate(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuth("success")
	s.events.Publish(shared.EntityUser, shared.EventTypeLogin, user.ID, user.ID, map[string]interface{}{
		"email": user.Email,
	})
	return &ontology.LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate turns a bearer token into the viewer it represents.
func (s *AuthService) Authenticate(token string) (*visibility.Viewer, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrUnauthorized, err)
	}
	return &visibility.Viewer{
		UserID:         claims.UserID,
		Role:           claims.Role,
		OrganizationID: claims.OrganizationID,
	}, nil
}

// Me returns the current user record for viewer.
func (s *AuthService) Me(ctx context.Context, viewer *visibility.Viewer) (*ontology.User, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, viewer, viewer.UserID)
}
