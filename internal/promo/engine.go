package promo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakehouse-backend/internal/calendar"
	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/money"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Rejection tells callers why a code was refused.
type Rejection string

const (
	RejectInvalidOrExpired  Rejection = "INVALID_OR_EXPIRED"
	RejectBelowMinimumSpend Rejection = "BELOW_MINIMUM_SPEND"
	RejectAlreadyUsed       Rejection = "ALREADY_USED_BY_CUSTOMER"
	RejectAdminOnly         Rejection = "ADMIN_ONLY"
)

func reject(reason Rejection, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"reason": string(reason)})
}

// RejectionOf extracts the rejection reason from a Validate error.
func RejectionOf(err error) (Rejection, bool) {
	pe := pkgerrors.As(err)
	if pe == nil {
		return "", false
	}
	details, ok := pe.Details().(map[string]any)
	if !ok {
		return "", false
	}
	reason, ok := details["reason"].(string)
	return Rejection(reason), ok
}

// OrderQuery is the order-side lookup the one-per-customer rule needs.
type OrderQuery interface {
	CountConfirmedWithPromo(ctx context.Context, promoID, customerID uuid.UUID) (int64, error)
}

// Applied is a validated promo ready to price an order.
type Applied struct {
	PromoID              uuid.UUID           `json:"promoId"`
	Type                 enums.PromoCodeType `json:"type"`
	Amount               decimal.Decimal     `json:"amount"`
	IsIncludeDeliveryFee bool                `json:"isIncludeDeliveryFee"`
	UsedCode             string              `json:"usedCode"`
}

// ValidateInput is what a code is checked against.
type ValidateInput struct {
	Code       string
	Subtotal   decimal.Decimal
	CustomerID *uuid.UUID
	Role       enums.AccountRole
}

// NormalizeCode lower-cases and trims a submitted code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func (s *service) Validate(ctx context.Context, input ValidateInput) (*Applied, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, reject(RejectInvalidOrExpired, "promo code invalid or expired")
	}
	promo, err := s.repo.FindActiveByCode(ctx, code, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	if promo == nil {
		return nil, reject(RejectInvalidOrExpired, "promo code invalid or expired")
	}

	now := s.clock.LocalNow()
	switch {
	case promo.CapReached():
		return nil, reject(RejectInvalidOrExpired, "promo code invalid or expired")
	case promo.MinSpending.GreaterThan(input.Subtotal):
		return nil, reject(RejectBelowMinimumSpend, "minimum spending is "+money.Format(promo.MinSpending))
	case !windowStart(promo, s.clock.Location).Before(now):
		return nil, reject(RejectInvalidOrExpired, "promo code invalid or expired")
	case promo.EndDate != nil && windowEnd(promo, s.clock.Location).Before(now):
		return nil, reject(RejectInvalidOrExpired, "promo code invalid or expired")
	}

	if !promo.IsMultiCode && promo.IsOnePerCustomer && input.CustomerID != nil {
		count, err := s.orders.CountConfirmedWithPromo(ctx, promo.ID, *input.CustomerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check promo usage")
		}
		if count > 0 {
			return nil, reject(RejectAlreadyUsed, "promo code has already been used")
		}
	}
	if promo.IsAdminOnly && input.Role != enums.AccountRoleAdmin {
		return nil, reject(RejectAdminOnly, "promo code invalid or expired")
	}

	return &Applied{
		PromoID:              promo.ID,
		Type:                 promo.Type,
		Amount:               promo.Amount,
		IsIncludeDeliveryFee: promo.IsIncludeDeliveryFee,
		UsedCode:             code,
	}, nil
}

func atTimeOfDay(date types.Date, clock string, loc *time.Location, fallback time.Duration) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	offset := fallback
	if strings.TrimSpace(clock) != "" {
		if parsed, err := calendar.ParseCutoff(clock); err == nil {
			offset = parsed
		}
	}
	return date.In(loc).Add(offset)
}

func windowStart(promo *models.PromoCode, loc *time.Location) time.Time {
	return atTimeOfDay(promo.StartDate, promo.StartTime, loc, 0)
}

// windowEnd without an end time covers the whole end date.
func windowEnd(promo *models.PromoCode, loc *time.Location) time.Time {
	return atTimeOfDay(*promo.EndDate, promo.EndTime, loc, 24*time.Hour-time.Second)
}

// ComputeDiscount prices a promo. subtotal already includes deliveryFee, which
// percentage codes exclude unless they cover delivery. Absolute amounts are
// returned as-is, even above subtotal.
func ComputeDiscount(applied *Applied, subtotal, deliveryFee decimal.Decimal) decimal.Decimal {
	if applied == nil {
		return decimal.Zero
	}
	if applied.Type == enums.PromoCodeAbsolute {
		return applied.Amount
	}
	base := subtotal
	if !applied.IsIncludeDeliveryFee {
		base = base.Sub(deliveryFee)
	}
	return money.Percent(base, applied.Amount)
}

// MarkUsed counts a redemption. It reads and writes the counter without a lock.
func (s *service) MarkUsed(ctx context.Context, applied *Applied, customerID *uuid.UUID) error {
	if applied == nil {
		return nil
	}
	promo, err := s.repo.FindByID(ctx, applied.PromoID, false)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	if promo == nil {
		return reject(RejectInvalidOrExpired, "promo code invalid or expired")
	}
	if promo.IsMultiCode {
		pc, err := s.repo.FindPoolCode(ctx, promo.ID, NormalizeCode(applied.UsedCode))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pool code")
		}
		if pc == nil || pc.Used {
			return reject(RejectInvalidOrExpired, "promo code invalid or expired")
		}
		if err := s.repo.MarkPoolCodeUsed(ctx, pc.ID, customerID, s.clock.LocalNow().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark pool code used")
		}
	}
	if err := s.repo.IncrementUsed(ctx, promo); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count promo usage")
	}
	return nil
}
