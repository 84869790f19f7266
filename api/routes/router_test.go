package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bakehouse-backend/internal/settings"
	"github.com/angelmondragon/bakehouse-backend/pkg/auth"
	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	"github.com/angelmondragon/bakehouse-backend/pkg/metrics"
)

type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return true, 1, nil
}

type stubSettings struct {
	settings.Service
}

func (stubSettings) Get(context.Context) (*models.Setting, error) {
	return &models.Setting{DeliveryDays: 14, BlackoutWeekday: models.NoBlackoutWeekday}, nil
}

func testConfig(env string) *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: env},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "bakehouse", ExpirationMinutes: 60},
	}
}

func newTestRouter(t *testing.T, env string) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Config:      testConfig(env),
		Redis:       newMemoryRedis(),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Settings:    stubSettings{},
	})
}

func bearer(t *testing.T, role enums.AccountRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testConfig("dev").JWT, time.Now(), auth.AccessTokenPayload{
		AccountID: uuid.New(),
		Email:     "staff@example.com",
		Role:      role,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func do(router http.Handler, method, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	rec := do(newTestRouter(t, "dev"), http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	router := newTestRouter(t, "dev")

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/api/admin/settings/delivery", "").Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/admin/settings/delivery", bearer(t, enums.AccountRoleCustomer)).Code)

	rec := do(router, http.MethodGet, "/api/admin/settings/delivery", bearer(t, enums.AccountRoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	rec := do(newTestRouter(t, "dev"), http.MethodPost, "/api/v1/orders", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Idempotency-Key")
}

func TestStorefrontRejectsBadToken(t *testing.T) {
	rec := do(newTestRouter(t, "dev"), http.MethodGet, "/api/v1/products/"+uuid.NewString()+"/stocks", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGatewayWebhooksOmittedWhenUnconfigured(t *testing.T) {
	router := newTestRouter(t, "dev")
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodPost, "/api/v1/webhooks/stripe", "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodPost, "/api/v1/webhooks/hitpay", "").Code)
}

func TestAdminRegisterOnlyOutsideProd(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, do(newTestRouter(t, "prod"), http.MethodPost, "/api/v1/auth/admin/register", "").Code)
	assert.NotEqual(t, http.StatusNotFound, do(newTestRouter(t, "dev"), http.MethodPost, "/api/v1/auth/admin/register", "").Code)
}

func TestMetricsExposeRouteLabels(t *testing.T) {
	router := newTestRouter(t, "dev")
	do(router, http.MethodGet, "/health/live", "")

	rec := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/health/live"`)
}
