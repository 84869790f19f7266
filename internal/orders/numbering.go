package orders

import (
	"context"
	"strconv"
	"time"

	"github.com/angelmondragon/bakehouse-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
)

// nextNumber follows the latest assigned number.
func nextNumber(latest string) (string, error) {
	if latest == "" {
		return FirstOrderNumber, nil
	}
	n, err := strconv.ParseInt(latest, 10, 64)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order number is not numeric").
			WithDetails(map[string]any{"latest": latest})
	}
	return strconv.FormatInt(n+1, 10), nil
}

// isNumberCollision matches the index name on Postgres and the column on SQLite.
func isNumberCollision(err error) bool {
	return db.IsUniqueViolation(err, "ux_orders_order_number") || db.IsUniqueViolation(err, "orders.order_number")
}

// backoff is base * 2^attempt.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	return base << attempt
}

// withOrderNumber runs insert with a fresh number until it stops colliding on
// the order number index. Each attempt must be its own transaction.
func (s *service) withOrderNumber(ctx context.Context, insert func(ctx context.Context, number string) error) (string, error) {
	attempts := s.numberAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			s.metrics.IncNumberRetry()
			if err := s.sleep(ctx, backoff(s.numberBackoff, attempt-1)); err != nil {
				return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order numbering interrupted")
			}
		}
		latest, err := s.repo.LatestNumber(ctx)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read latest order number")
		}
		number, err := nextNumber(latest)
		if err != nil {
			return "", err
		}
		err = insert(ctx, number)
		if err == nil {
			return number, nil
		}
		if !isNumberCollision(err) {
			return "", err
		}
		lastErr = err
	}
	return "", pkgerrors.Wrap(pkgerrors.CodeResourceExhausted, lastErr, "could not assign an order number, please retry").
		WithDetails(map[string]any{"attempts": attempts})
}
