package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	pkgAuth "github.com/angelmondragon/recovero-backend/pkg/auth"
	"github.com/angelmondragon/recovero-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/security"
	"github.com/google/uuid"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the admin auth controllers.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, tokenID string) error
}

type sessionManager interface {
	Register(ctx context.Context, jti, subject string, ttl time.Duration) error
	Revoke(ctx context.Context, jti string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Admin          config.AdminConfig
	JWTConfig      config.JWTConfig
	SessionManager sessionManager
	Now            func() time.Time
}

type service struct {
	admin   config.AdminConfig
	jwtCfg  config.JWTConfig
	session sessionManager
	now     func() time.Time
}

// NewService constructs the single-operator login service.
func NewService(params ServiceParams) (Service, error) {
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		admin:   params.Admin,
		jwtCfg:  params.JWTConfig,
		session: params.SessionManager,
		now:     now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if strings.TrimSpace(s.admin.Email) == "" || strings.TrimSpace(s.admin.PasswordHash) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotConfigured, "admin account is not configured")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	expected := strings.ToLower(strings.TrimSpace(s.admin.Email))
	emailMatches := subtle.ConstantTimeCompare([]byte(email), []byte(expected)) == 1

	// The hash is always checked so a wrong email costs the same as a wrong password.
	ok, err := security.VerifyPassword(req.Password, s.admin.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok || !emailMatches {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now().UTC()
	tokenID := uuid.NewString()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		Subject: expected,
		Role:    pkgAuth.RoleAdmin,
		JTI:     tokenID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if err := s.session.Register(ctx, tokenID, expected, s.jwtCfg.TTL()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store admin session")
	}

	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   now.Add(s.jwtCfg.TTL()),
	}, nil
}

// Logout revokes the session behind tokenID; the JWT stops authenticating
// immediately even though it has not expired.
func (s *service) Logout(ctx context.Context, tokenID string) error {
	if strings.TrimSpace(tokenID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing token id")
	}
	if err := s.session.Revoke(ctx, tokenID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke admin session")
	}
	return nil
}
