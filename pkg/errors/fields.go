package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err into structured log fields: the typed code, the
// unwrap chain and, when a Postgres error is in the chain, its SQLSTATE and
// constraint. Unique violations on the order number surface here first.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error": err.Error()}
	if te := As(err); te != nil {
		fields["error_code"] = te.Code()
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	if state, constraint, detail, ok := postgresError(err); ok {
		fields["pg_code"] = state
		if constraint != "" {
			fields["pg_constraint"] = constraint
		}
		if detail != "" {
			fields["pg_detail"] = detail
		}
	}
	return fields
}

// postgresError extracts SQLSTATE details from either driver's error type.
func postgresError(err error) (state, constraint, detail string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, pgxErr.Detail, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, pqErr.Detail, true
	}
	return "", "", "", false
}
