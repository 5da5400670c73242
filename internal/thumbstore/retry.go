package thumbstore

import (
	"context"
	"strings"
	"time"
)

const (
	maxRetries  = 5
	baseBackoff = 10 * time.Millisecond
)

// withRetry runs fn, retrying on SQLITE_BUSY/SQLITE_LOCKED with bounded
// exponential backoff (10ms, 20ms, 40ms, 80ms, 160ms). It returns the
// number of retries actually performed alongside fn's final error.
func withRetry(ctx context.Context, fn func() error) (retries int, err error) {
	backoff := baseBackoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return attempt, err
		}
		if attempt == maxRetries {
			return attempt, err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
		backoff *= 2
	}
	return maxRetries, err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}
