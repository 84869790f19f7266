package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/bakehouse-backend/pkg/enums"
)

type contextKey string

const (
	ctxAccountID  contextKey = "account_id"
	ctxRole       contextKey = "actor_role"
	ctxCustomerID contextKey = "customer_id"
)

// AccountIDFromContext returns the signed-in account, or nil for guests.
func AccountIDFromContext(ctx context.Context) *uuid.UUID {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxAccountID).(uuid.UUID); ok {
		return &v
	}
	return nil
}

func RoleFromContext(ctx context.Context) enums.AccountRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.AccountRole); ok {
		return v
	}
	return ""
}

// CustomerIDFromContext returns the customer record linked to the account.
func CustomerIDFromContext(ctx context.Context) *uuid.UUID {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxCustomerID).(uuid.UUID); ok {
		return &v
	}
	return nil
}

// WithIdentity injects the caller identity into the context.
func WithIdentity(ctx context.Context, accountID uuid.UUID, role enums.AccountRole, customerID *uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	ctx = context.WithValue(ctx, ctxRole, role)
	if customerID != nil {
		ctx = context.WithValue(ctx, ctxCustomerID, *customerID)
	}
	return ctx
}
