package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/docreview-backend/internal/sessions"
	pkgAuth "github.com/angelmondragon/docreview-backend/pkg/auth"
	"github.com/angelmondragon/docreview-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
	"github.com/angelmondragon/docreview-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error
}

type service struct {
	reviewer   config.ReviewerConfig
	session    sessionManager
	workspaces workspaceRegistry
	gauge      sessionGauge
	jwtCfg     config.JWTConfig
	now        func() time.Time
}

type sessionManager interface {
	Start(ctx context.Context, username string) (string, error)
	Revoke(ctx context.Context, sessionID string) error
}

type workspaceRegistry interface {
	Open(sessionID, reviewer string) (*sessions.Workspace, error)
	Close(sessionID string) bool
	Len() int
}

type sessionGauge interface {
	SetOpenSessions(n int)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Reviewer       config.ReviewerConfig
	SessionManager sessionManager
	Workspaces     workspaceRegistry
	Metrics        sessionGauge
	JWTConfig      config.JWTConfig
	Now            func() time.Time
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Workspaces == nil {
		return nil, fmt.Errorf("workspace registry is required")
	}
	if strings.TrimSpace(params.Reviewer.Username) == "" {
		return nil, fmt.Errorf("reviewer username is required")
	}
	if err := security.ValidateHash(params.Reviewer.PasswordHash); err != nil {
		return nil, fmt.Errorf("reviewer password hash: %w", err)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		reviewer:   params.Reviewer,
		session:    params.SessionManager,
		workspaces: params.Workspaces,
		gauge:      params.Metrics,
		jwtCfg:     params.JWTConfig,
		now:        now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username, err := s.authenticate(req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	sessionID, err := s.session.Start(ctx, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start session")
	}

	now := s.now().UTC()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		Username:  username,
		SessionID: sessionID,
	})
	if err != nil {
		_ = s.session.Revoke(ctx, sessionID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	if _, err := s.workspaces.Open(sessionID, username); err != nil {
		_ = s.session.Revoke(ctx, sessionID)
		return nil, err
	}
	s.reportSessions()

	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		SessionID:   sessionID,
		Username:    username,
		ExpiresAt:   now.Add(s.jwtCfg.SessionTTL()),
	}, nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session is required")
	}
	if err := s.session.Revoke(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	s.workspaces.Close(sessionID)
	s.reportSessions()
	return nil
}

// authenticate always runs the argon2 check so a wrong username costs the
// same as a wrong password.
func (s *service) authenticate(username, password string) (string, error) {
	input := strings.TrimSpace(username)
	if input == "" || password == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	userMatch := subtle.ConstantTimeCompare([]byte(input), []byte(s.reviewer.Username)) == 1
	valid, err := security.VerifyPassword(password, s.reviewer.PasswordHash)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !userMatch || !valid {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return s.reviewer.Username, nil
}

func (s *service) reportSessions() {
	if s.gauge != nil {
		s.gauge.SetOpenSessions(s.workspaces.Len())
	}
}
