package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/bakehouse-backend/pkg/auth"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/security"
)

var (
	testJWT      = config.JWTConfig{Secret: "secret", Issuer: "bakehouse", ExpirationMinutes: 30}
	testPassword = config.PasswordConfig{ArgonMemoryKB: 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
)

type stubAccounts struct {
	accounts  map[string]*models.Account
	lastLogin map[uuid.UUID]time.Time
}

func (s *stubAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	if a, ok := s.accounts[email]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubAccounts) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.lastLogin[id] = at
	return nil
}

type stubLimiter struct {
	counts map[string]int64
}

func (s *stubLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	s.counts[scope]++
	return s.counts[scope] <= limit, s.counts[scope], nil
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func buildTestService(t *testing.T, account *models.Account, limit int) (Service, *stubAccounts, *stubLimiter) {
	t.Helper()
	repo := &stubAccounts{accounts: map[string]*models.Account{}, lastLogin: map[uuid.UUID]time.Time{}}
	if account != nil {
		repo.accounts[account.Email] = account
	}
	limiter := &stubLimiter{counts: map[string]int64{}}
	svc, err := NewService(ServiceParams{
		Accounts:  repo,
		Limiter:   limiter,
		JWTConfig: testJWT,
		RateLimit: config.AuthRateLimitConfig{LoginWindow: time.Minute, LoginEmailLimit: limit},
		Now:       func() time.Time { return time.Now() },
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo, limiter
}

func TestServiceLoginMintsRoleClaims(t *testing.T) {
	customerID := uuid.New()
	account := &models.Account{
		ID:           uuid.New(),
		Email:        "jane@example.com",
		PasswordHash: mustHashPassword(t, "sourdough"),
		Role:         enums.AccountRoleCustomer,
		CustomerID:   &customerID,
	}
	svc, repo, _ := buildTestService(t, account, 5)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " Jane@Example.com ", Password: "sourdough"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.AccountID != account.ID || claims.Role != enums.AccountRoleCustomer {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.CustomerID == nil || *claims.CustomerID != customerID {
		t.Fatalf("expected customer id claim")
	}
	if _, ok := repo.lastLogin[account.ID]; !ok {
		t.Fatalf("expected last login to be recorded")
	}
	if resp.Account.LastLoginAt == nil {
		t.Fatalf("expected last login on response")
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	account := &models.Account{
		ID:           uuid.New(),
		Email:        "admin@example.com",
		PasswordHash: mustHashPassword(t, "croissant"),
		Role:         enums.AccountRoleAdmin,
	}
	svc, _, _ := buildTestService(t, account, 0)

	for _, req := range []LoginRequest{
		{Email: "admin@example.com", Password: "baguette"},
		{Email: "nobody@example.com", Password: "croissant"},
		{Email: "", Password: "croissant"},
	} {
		_, err := svc.Login(context.Background(), req)
		if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			t.Fatalf("expected unauthorized for %q, got %v", req.Email, err)
		}
	}
}

func TestServiceLoginRateLimitedPerEmail(t *testing.T) {
	account := &models.Account{
		ID:           uuid.New(),
		Email:        "jane@example.com",
		PasswordHash: mustHashPassword(t, "sourdough"),
		Role:         enums.AccountRoleCustomer,
	}
	svc, _, limiter := buildTestService(t, account, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, LoginRequest{Email: account.Email, Password: "wrong"}); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			t.Fatalf("attempt %d: expected unauthorized, got %v", i, err)
		}
	}
	_, err := svc.Login(ctx, LoginRequest{Email: account.Email, Password: "sourdough"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeRateLimit) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if limiter.counts["login:jane@example.com"] != 3 {
		t.Fatalf("expected three counted attempts, got %d", limiter.counts["login:jane@example.com"])
	}
}

func TestNewServiceRequiresAccounts(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error without account repository")
	}
}
