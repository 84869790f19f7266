package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/pkg/hitpay"
)

const testSalt = "salt_test"

type fakeHitPayService struct {
	calls  int
	values url.Values
}

func (f *fakeHitPayService) HandleWebhook(_ context.Context, values url.Values) error {
	f.calls++
	f.values = values
	return nil
}

func signedHitPayForm() url.Values {
	values := url.Values{
		"payment_id":         {"pay_" + uuid.NewString()},
		"payment_request_id": {"req_" + uuid.NewString()},
		"reference_number":   {uuid.NewString()},
		"amount":             {"48.00"},
		"currency":           {"SGD"},
		"status":             {"completed"},
	}
	values.Set("hmac", hitpay.Sign(testSalt, values))
	return values
}

func postForm(handler http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/hitpay", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHitPayWebhook_SuccessAndIdempotent(t *testing.T) {
	service := &fakeHitPayService{}
	handler := HitPayWebhook(service, testSalt, newGuard(t, "hitpay"), nil)
	values := signedHitPayForm()

	if rec := postForm(handler, values); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := postForm(handler, values); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec.Code)
	}
	if service.calls != 1 {
		t.Fatalf("expected one call, got %d", service.calls)
	}
	if service.values.Get("amount") != "48.00" {
		t.Fatalf("form values not forwarded: %v", service.values)
	}
}

func TestHitPayWebhook_RejectsTamperedPayload(t *testing.T) {
	service := &fakeHitPayService{}
	handler := HitPayWebhook(service, testSalt, newGuard(t, "hitpay"), nil)
	values := signedHitPayForm()
	values.Set("amount", "1.00")

	if rec := postForm(handler, values); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("tampered payload must not be applied")
	}
}
