package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyWriteErr(t *testing.T) {
	t.Parallel()

	isPermanent := func(err error) bool {
		var pe *backoff.PermanentError
		return errors.As(err, &pe)
	}

	uniq := fmt.Errorf("insert alert: %w", &pgconn.PgError{Code: "23505"})
	if !isPermanent(classifyWriteErr(uniq)) {
		t.Error("unique violation must not be retried")
	}
	if !isPermanent(classifyWriteErr(&pgconn.PgError{Code: "23503"})) {
		t.Error("foreign-key violation must not be retried")
	}

	if isPermanent(classifyWriteErr(&pgconn.PgError{Code: "08006"})) {
		t.Error("connection failure must stay retryable")
	}
	if isPermanent(classifyWriteErr(errors.New("dial tcp: timeout"))) {
		t.Error("untyped errors must stay retryable")
	}
	if classifyWriteErr(nil) != nil {
		t.Error("nil must pass through")
	}
}
