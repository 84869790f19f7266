package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.data[key], _ = value.(string)
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func postRequest(url, body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"create order", http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL, true},
		{"admin refund", http.MethodPost, "/api/admin/orders/123/refund", criticalIdempotencyTTL, true},
		{"admin cancel", http.MethodPost, "/api/admin/orders/456/cancel", criticalIdempotencyTTL, true},
		{"stripe session", http.MethodPost, "/api/v1/orders/abc/payments/stripe", defaultIdempotencyTTL, true},
		{"bulk status", http.MethodPost, "/api/admin/orders/status", defaultIdempotencyTTL, true},
		{"order read", http.MethodGet, "/api/v1/orders/abc", 0, false},
		{"non idempotent", http.MethodPost, "/api/v1/auth/login", 0, false},
		{"webhook", http.MethodPost, "/api/v1/webhooks/stripe", 0, false},
		{"trailing slash", http.MethodPost, "/api/v1/orders/", criticalIdempotencyTTL, true},
		{"missing param", http.MethodPost, "/api/admin/orders//refund", 0, false},
		{"extra segment", http.MethodPost, "/api/admin/orders/1/refund/2", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := postRequest("/api/v1/auth/register", `{"foo":"bar"}`)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := postRequest("/api/v1/auth/register", `{"foo":"bar"}`)
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected first response 202 got %d", resp.Code)
	}

	replay := postRequest("/api/v1/auth/register", `{"foo":"bar"}`)
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected replay status 202 got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := postRequest("/api/v1/auth/register", `{"foo":"bar"}`)
	req.Header.Set("Idempotency-Key", "xyz")
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	replay := postRequest("/api/v1/auth/register", `{"foo":"diff"}`)
	replay.Header.Set("Idempotency-Key", "xyz")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, replay)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}

func TestIdempotencyMiddlewareScopesKeysPerAccount(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for _, account := range []uuid.UUID{uuid.New(), uuid.New()} {
		req := postRequest("/api/v1/orders", `{"lines":[]}`)
		req = req.WithContext(WithIdentity(req.Context(), account, enums.AccountRoleCustomer, nil))
		req.Header.Set("Idempotency-Key", "same")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected one execution per account, got %d", calls)
	}
}

func TestIdempotencyMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	status := http.StatusServiceUnavailable
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	first := postRequest("/api/v1/orders", `{}`)
	first.Header.Set("Idempotency-Key", "retry-me")
	mw(handler).ServeHTTP(httptest.NewRecorder(), first)
	if len(store.data) != 0 {
		t.Fatalf("server errors must not be stored")
	}

	status = http.StatusCreated
	second := postRequest("/api/v1/orders", `{}`)
	second.Header.Set("Idempotency-Key", "retry-me")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, second)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected retry to reach the handler, got %d", resp.Code)
	}
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	var inner http.Handler
	inner = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		dup := postRequest("/api/v1/orders", `{"lines":[1]}`)
		dup.Header.Set("Idempotency-Key", "double-click")
		resp := httptest.NewRecorder()
		mw(inner).ServeHTTP(resp, dup)
		if resp.Code != http.StatusConflict {
			t.Errorf("duplicate while in flight: expected 409 got %d", resp.Code)
		}
		w.WriteHeader(http.StatusCreated)
	})

	req := postRequest("/api/v1/orders", `{"lines":[1]}`)
	req.Header.Set("Idempotency-Key", "double-click")
	resp := httptest.NewRecorder()
	mw(inner).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("expected single execution with 201, got %d after %d calls", resp.Code, calls)
	}

	replay := postRequest("/api/v1/orders", `{"lines":[1]}`)
	replay.Header.Set("Idempotency-Key", "double-click")
	rec := httptest.NewRecorder()
	mw(inner).ServeHTTP(rec, replay)
	if rec.Code != http.StatusCreated || rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected stored 201 replay, got %d", rec.Code)
	}
}

func TestIdempotencyMiddlewareReleasesKeyOnPanic(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	req := postRequest("/api/v1/orders", `{}`)
	req.Header.Set("Idempotency-Key", "boom")

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("panic should propagate")
			}
		}()
		mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })).ServeHTTP(httptest.NewRecorder(), req)
	}()
	if len(store.data) != 0 {
		t.Fatalf("panicking request must release its key")
	}
}
