package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	gsqlite "github.com/glebarez/go-sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/infra/metrics"
)

const (
	insertAttempts = 5
	writeAttempts  = 3
)

// isBusy reports SQLITE_BUSY / SQLITE_LOCKED raised when another process
// holds the write lock. The driver enables extended result codes, so only
// the primary code in the low byte is compared.
func isBusy(err error) bool {
	var serr *gsqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// withRetry runs fn up to attempts times while it fails with a busy error,
// sleeping backoff between attempts. Other errors return immediately.
func (r *BotRepo) withRetry(ctx context.Context, op string, attempts int, fn func() error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		metrics.IncStoreBusyRetry(op)
		r.log.Warn().Str("op", op).Int("attempt", i).Int("max", attempts).Msg("store busy, retrying")
		if i == attempts {
			break
		}
		t := time.NewTimer(r.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(ctx.Err(), err)
		case <-t.C:
		}
	}
	return fmt.Errorf("%s after %d attempts: %w: %v", op, attempts, domain.ErrStoreBusy, err)
}
