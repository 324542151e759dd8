package utils

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// RetryPolicy bounds how hard a constructor tries to reach a backing store.
type RetryPolicy struct {
	Attempts    int `json:"attempts"`
	DelayMillis int `json:"delayMillis"` // doubled after every failure
}

// Do runs fn until it succeeds, the attempts are used up, or ctx ends. The
// last error is returned.
func (p RetryPolicy) Do(ctx context.Context, what string, fn func() error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := time.Duration(p.DelayMillis) * time.Millisecond

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		log.Warn("[retry] attempt failed", "what", what, "attempt", i, "of", attempts, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
