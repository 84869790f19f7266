package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"

	"github.com/angelmondragon/bakehouse-backend/pkg/config"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
)

const (
	testEnv = "test"
	liveEnv = "live"

	// MetadataOrderID is the payment intent metadata key carrying the order id.
	MetadataOrderID     = "orderId"
	metadataOrderNumber = "orderNumber"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps the Stripe SDK calls used by checkout, refunds and webhooks.
type Client struct {
	environment   string
	signingSecret string
	currency      string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, currency string, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		environment:   env,
		signingSecret: signingSecret,
		currency:      strings.ToLower(strings.TrimSpace(currency)),
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// CreatePaymentIntent opens an intent for amount (major units) tagged with the order id.
func (c *Client) CreatePaymentIntent(ctx context.Context, orderID uuid.UUID, orderNumber string, amount decimal.Decimal) (*stripe.PaymentIntent, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive, got %s", amount)
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(money.ToMinor(amount)),
		Currency: stripe.String(c.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, orderID.String())
	params.AddMetadata(metadataOrderNumber, orderNumber)
	return paymentintent.New(params)
}

// PaymentIntentFee loads the intent with its balance transaction and returns the
// gateway fee in major units.
func (c *Client) PaymentIntentFee(ctx context.Context, intentID string) (decimal.Decimal, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge.balance_transaction")
	intent, err := paymentintent.Get(intentID, params)
	if err != nil {
		return decimal.Zero, err
	}
	if intent.LatestCharge == nil || intent.LatestCharge.BalanceTransaction == nil {
		return decimal.Zero, nil
	}
	return money.FromMinor(intent.LatestCharge.BalanceTransaction.Fee), nil
}

// Refund refunds amount (major units) against a payment intent.
func (c *Client) Refund(ctx context.Context, intentID string, amount decimal.Decimal) (*stripe.Refund, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("refund amount must be positive, got %s", amount)
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(money.ToMinor(amount)),
	}
	params.Context = ctx
	return refund.New(params)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	prefix := "sk_" + env
	restricted := "rk_" + env
	if strings.HasPrefix(key, prefix) || strings.HasPrefix(key, restricted) {
		return nil
	}
	return fmt.Errorf("stripe environment %q requires a %s or %s key", env, prefix, restricted)
}
