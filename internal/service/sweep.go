package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

// SweepExpiredReservations expires every CONFIRMED or LATE reservation whose
// start plus the grace period has passed and returns how many rows changed.
// Each row is flipped with a conditional update scoped to the status it was
// read in, so a concurrent arrival or cancellation wins and a second run
// changes nothing.
func (e *Engine) SweepExpiredReservations(ctx context.Context) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	now := e.now()
	candidates, err := e.reservations.ExpirableOnOrBefore(ctx, e.policy.Today(now))
	if err != nil {
		return 0, opErr("sweep", err)
	}
	expired := 0
	for _, r := range candidates {
		slot, err := e.policy.Slot(r.Date, r.Time)
		if err != nil {
			log.Printf("engine: sweep skipped reservation %d: %v", r.ID, err)
			continue
		}
		if now.Before(e.policy.ExpiresAt(slot)) {
			continue
		}
		err = e.reservations.Transition(ctx, r.ID, r.Status, model.StatusExpired)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return expired, opErr("sweep", err)
		}
		expired++
	}
	if expired == 0 {
		return 0, nil
	}

	var ob outbox
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		promoted, err := e.offerTx(ctx, tx, 0)
		ob.promoted(promoted)
		return err
	})
	if err != nil {
		log.Printf("engine: promotion after sweep failed: %v", err)
		return expired, nil
	}
	e.flush(ctx, &ob)
	return expired, nil
}

// StartExpirationWorker runs the sweep every interval until ctx is done.
func (e *Engine) StartExpirationWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := e.SweepExpiredReservations(ctx)
				if err != nil {
					log.Printf("engine: expiry sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("engine: expired %d reservation(s)", n)
				}
			}
		}
	}()
}
