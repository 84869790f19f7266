package hitpay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/pkg/config"
)

func TestSignAndVerify(t *testing.T) {
	values := url.Values{}
	values.Set("payment_id", "pay-1")
	values.Set("payment_request_id", "req-1")
	values.Set("amount", "23.00")
	values.Set("currency", "SGD")
	values.Set("status", "completed")
	values.Set("reference_number", "210000")

	sig := Sign("salt", values)
	values.Set("hmac", sig)
	if !VerifySignature("salt", values) {
		t.Fatalf("expected signature to verify")
	}
	if Sign("salt", values) != sig {
		t.Fatalf("hmac field must be excluded from the signed payload")
	}

	values.Set("amount", "1.00")
	if VerifySignature("salt", values) {
		t.Fatalf("tampered payload must not verify")
	}
	if VerifySignature("", values) {
		t.Fatalf("empty salt must not verify")
	}
}

func TestCreateAndGetPaymentRequest(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(apiKeyHeader) != "key" {
			t.Errorf("missing api key header")
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/payment-requests":
			body, _ := io.ReadAll(r.Body)
			gotForm, _ = url.ParseQuery(string(body))
			_, _ = w.Write([]byte(`{"id":"req-1","url":"https://pay.example/req-1","status":"pending","amount":"23.00"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/payment-requests/req-1":
			_, _ = w.Write([]byte(`{"id":"req-1","status":"completed","amount":"23.00","payments":[{"id":"pay-1","status":"succeeded","amount":"23.00","fees":0.85}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		}
	}))
	defer server.Close()

	client, err := NewClient(config.HitPayConfig{BaseURL: server.URL + "/v1", APIKey: "key", Salt: "salt", WebhookURL: "https://api.example/webhooks/hitpay"}, "sgd", server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	created, err := client.CreatePaymentRequest(context.Background(), CreateRequest{
		Amount:    decimal.RequireFromString("23"),
		Email:     "a@b.c",
		Name:      "Ann",
		Reference: "210000",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.URL == "" || gotForm.Get("amount") != "23.00" || gotForm.Get("currency") != "SGD" || gotForm.Get("webhook") == "" {
		t.Fatalf("unexpected request %v -> %+v", gotForm, created)
	}

	fetched, err := client.GetPaymentRequest(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Status != StatusCompleted || len(fetched.Payments) != 1 || fetched.Payments[0].Fees != 0.85 {
		t.Fatalf("unexpected payment request %+v", fetched)
	}

	if _, err := client.RefundPayment(context.Background(), "pay-1", decimal.NewFromInt(5)); err == nil {
		t.Fatalf("expected api error for unknown route")
	} else if apiErr, ok := err.(*APIError); !ok || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected APIError 404, got %v", err)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(config.HitPayConfig{Salt: "s"}, "SGD", nil); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewClient(config.HitPayConfig{APIKey: "k"}, "SGD", nil); err == nil {
		t.Fatalf("expected missing salt error")
	}
}
