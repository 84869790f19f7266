package hitpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/pkg/config"
)

const (
	apiKeyHeader = "X-BUSINESS-API-KEY"

	// StatusCompleted is the payment request status that settles an order.
	StatusCompleted = "completed"
)

// PaymentRequest is the subset of a HitPay payment request the workflow reads.
type PaymentRequest struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Status          string    `json:"status"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	ReferenceNumber string    `json:"reference_number"`
	Payments        []Payment `json:"payments"`
}

// Payment is a settled charge under a payment request.
type Payment struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Amount string  `json:"amount"`
	Fees   float64 `json:"fees"`
}

// Refund is the response of the refund endpoint.
type Refund struct {
	ID             string  `json:"id"`
	PaymentID      string  `json:"payment_id"`
	AmountRefunded float64 `json:"amount_refunded"`
}

// CreateRequest describes a new payment request.
type CreateRequest struct {
	Amount    decimal.Decimal
	Email     string
	Name      string
	Reference string
}

// Client talks to the HitPay REST API.
type Client struct {
	baseURL     *url.URL
	apiKey      string
	salt        string
	currency    string
	redirectURL string
	webhookURL  string
	http        *http.Client
}

// NewClient builds a HitPay client from config.
func NewClient(cfg config.HitPayConfig, currency string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("hitpay api key is required")
	}
	if strings.TrimSpace(cfg.Salt) == "" {
		return nil, errors.New("hitpay salt is required")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse hitpay url: %w", err)
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:     parsed,
		apiKey:      cfg.APIKey,
		salt:        cfg.Salt,
		currency:    strings.ToUpper(currency),
		redirectURL: cfg.RedirectURL,
		webhookURL:  cfg.WebhookURL,
		http:        httpClient,
	}, nil
}

// Salt returns the webhook signing salt.
func (c *Client) Salt() string {
	if c == nil {
		return ""
	}
	return c.salt
}

// CreatePaymentRequest opens a hosted checkout for the order.
func (c *Client) CreatePaymentRequest(ctx context.Context, req CreateRequest) (*PaymentRequest, error) {
	form := url.Values{}
	form.Set("amount", req.Amount.StringFixed(2))
	form.Set("currency", c.currency)
	form.Set("email", req.Email)
	form.Set("name", req.Name)
	form.Set("reference_number", req.Reference)
	if c.redirectURL != "" {
		form.Set("redirect_url", c.redirectURL)
	}
	if c.webhookURL != "" {
		form.Set("webhook", c.webhookURL)
	}

	var out PaymentRequest
	if err := c.do(ctx, http.MethodPost, "payment-requests", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPaymentRequest fetches a payment request with its payments.
func (c *Client) GetPaymentRequest(ctx context.Context, id string) (*PaymentRequest, error) {
	if id == "" {
		return nil, errors.New("payment request id is required")
	}
	var out PaymentRequest
	if err := c.do(ctx, http.MethodGet, "payment-requests/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefundPayment refunds amount against a settled payment.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, amount decimal.Decimal) (*Refund, error) {
	form := url.Values{}
	form.Set("payment_id", paymentID)
	form.Set("amount", amount.StringFixed(2))
	var out Refund
	if err := c.do(ctx, http.MethodPost, "refund", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hitpay %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read hitpay response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Body: string(payload)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode hitpay response: %w", err)
	}
	return nil
}

// APIError is a non-2xx answer from HitPay.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hitpay responded %d: %s", e.StatusCode, e.Body)
}

// AmountDecimal parses a HitPay amount string.
func AmountDecimal(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(raw))
}
