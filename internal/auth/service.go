package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bakehouse-backend/internal/users"
	pkgAuth "github.com/angelmondragon/bakehouse-backend/pkg/auth"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type service struct {
	accounts  accountRepository
	limiter   loginLimiter
	jwtCfg    config.JWTConfig
	rateLimit config.AuthRateLimitConfig
	now       func() time.Time
}

type accountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type loginLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
// A nil Limiter disables login throttling.
type ServiceParams struct {
	Accounts  accountRepository
	Limiter   loginLimiter
	JWTConfig config.JWTConfig
	RateLimit config.AuthRateLimitConfig
	Now       func() time.Time
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Accounts == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		accounts:  params.Accounts,
		limiter:   params.Limiter,
		jwtCfg:    params.JWTConfig,
		rateLimit: params.RateLimit,
		now:       now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.throttle(ctx, email); err != nil {
		return nil, err
	}
	account, err := s.authenticate(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	account.LastLoginAt = &now

	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		AccountID:  account.ID,
		CustomerID: account.CustomerID,
		Email:      account.Email,
		Role:       account.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &LoginResponse{AccessToken: token, Account: users.FromModel(account)}, nil
}

func (s *service) throttle(ctx context.Context, email string) error {
	if s.limiter == nil || s.rateLimit.LoginEmailLimit <= 0 || email == "" {
		return nil
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "login:"+email, int64(s.rateLimit.LoginEmailLimit), s.rateLimit.LoginWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check login rate limit")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts")
	}
	return nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup account")
	}

	valid, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return account, nil
}
