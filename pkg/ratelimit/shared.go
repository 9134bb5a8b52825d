package ratelimit

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SharedLimiter keeps the sliding window in a single Firestore document so the
// budget holds across horizontally scaled workers. Each Acquire runs a
// transaction that prunes the window and appends its own call stamp; a full
// window makes the caller sleep until the oldest stamp ages out and retry.
//
// Worker-local accounting would multiply the budget by the worker count, which
// is exactly the failure mode the provider bans.
type SharedLimiter struct {
	client *firestore.Client
	doc    *firestore.DocumentRef
	budget Budget

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSharedLimiter(client *firestore.Client, name string, b Budget) *SharedLimiter {
	return &SharedLimiter{
		client: client,
		doc:    client.Collection("rate_limits").Doc(name),
		budget: b,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func (l *SharedLimiter) Acquire(ctx context.Context) error {
	for {
		var wait time.Duration

		err := l.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			stamps, err := l.readStamps(tx)
			if err != nil {
				return err
			}

			kept, w := admit(stamps, l.now(), l.budget)
			if w > 0 {
				wait = w
				return nil
			}
			wait = 0
			return tx.Set(l.doc, map[string]interface{}{"stamps": kept})
		})
		if err != nil {
			return fmt.Errorf("rate limit transaction: %w", err)
		}

		if wait == 0 {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *SharedLimiter) readStamps(tx *firestore.Transaction) ([]time.Time, error) {
	snap, err := tx.Get(l.doc)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, ok := snap.Data()["stamps"].([]interface{})
	if !ok {
		return nil, nil
	}
	stamps := make([]time.Time, 0, len(raw))
	for _, v := range raw {
		if t, ok := v.(time.Time); ok {
			stamps = append(stamps, t)
		}
	}
	return stamps, nil
}
