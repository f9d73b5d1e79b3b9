package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

// GetBill computes the bill for a seated party: an ARRIVED reservation or a
// TABLE_FOUND waiting entry. A code that matches neither record yields
// ErrBillNotFound; one that matches an unseated record yields ErrNotSeated.
func (e *Engine) GetBill(ctx context.Context, code string) (model.Bill, error) {
	if err := e.ready(); err != nil {
		return model.Bill{}, err
	}
	code = strings.TrimSpace(code)
	res, err := e.reservations.GetByCode(ctx, code)
	switch {
	case err == nil:
		if res.Status != model.StatusArrived {
			return model.Bill{}, ErrNotSeated
		}
		role, err := e.users.RoleOf(ctx, res.SubscriberID)
		if err != nil {
			return model.Bill{}, opErr("get bill", err)
		}
		return e.bill(code, res.Guests, role, model.BillFromReservation), nil
	case !errors.Is(err, repository.ErrReservationNotFound):
		return model.Bill{}, opErr("get bill", err)
	}

	w, err := e.waiting.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrWaitingNotFound) {
		return model.Bill{}, ErrBillNotFound
	}
	if err != nil {
		return model.Bill{}, opErr("get bill", err)
	}
	if w.Status != model.WaitingTableFound {
		return model.Bill{}, ErrNotSeated
	}
	role, err := e.users.RoleOf(ctx, w.SubscriberID)
	if err != nil {
		return model.Bill{}, opErr("get bill", err)
	}
	return e.bill(code, w.Guests, role, model.BillFromWaiting), nil
}

func (e *Engine) bill(code string, diners int, role string, src model.BillSource) model.Bill {
	b := e.billing.Compute(code, diners, role)
	b.Source = src
	return b
}

// PayBill settles the bill for code in one transaction: the bill is
// recomputed, the source record is marked paid (a reservation then moves
// on to COMPLETED), the table is released and offered to the waiting list,
// and a visit history row is archived when the holder is a subscriber.
func (e *Engine) PayBill(ctx context.Context, code string, method model.PaymentMethod) (model.Bill, error) {
	if err := e.ready(); err != nil {
		return model.Bill{}, err
	}
	if _, ok := model.ParsePaymentMethod(string(method)); !ok {
		return model.Bill{}, ErrInvalidPaymentMethod
	}
	code = strings.TrimSpace(code)
	var (
		b  model.Bill
		ob outbox
	)
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		var (
			table     *int
			subID     *uint64
			arrivedAt *time.Time
		)
		res, err := e.reservations.GetByCodeTx(ctx, tx, code)
		switch {
		case err == nil:
			if res.Status != model.StatusArrived {
				return ErrNotSeated
			}
			role, err := e.users.RoleOfTx(ctx, tx, res.SubscriberID)
			if err != nil {
				return err
			}
			b = e.bill(code, res.Guests, role, model.BillFromReservation)
			if err := e.reservations.TransitionTx(ctx, tx, res.ID, model.StatusArrived, model.StatusPaid); err != nil {
				return err
			}
			if err := e.reservations.TransitionTx(ctx, tx, res.ID, model.StatusPaid, model.StatusCompleted); err != nil {
				return err
			}
			table, subID, arrivedAt = res.TableNumber, res.SubscriberID, res.ArrivedAt
		case errors.Is(err, repository.ErrReservationNotFound):
			w, err := e.waiting.GetByCodeTx(ctx, tx, code)
			if errors.Is(err, repository.ErrWaitingNotFound) {
				return ErrBillNotFound
			}
			if err != nil {
				return err
			}
			if w.Status != model.WaitingTableFound {
				return ErrNotSeated
			}
			role, err := e.users.RoleOfTx(ctx, tx, w.SubscriberID)
			if err != nil {
				return err
			}
			b = e.bill(code, w.Guests, role, model.BillFromWaiting)
			if err := e.waiting.MarkPaidTx(ctx, tx, w.ID); err != nil {
				return err
			}
			ob.listChanged = true
			table, subID, arrivedAt = w.TableNumber, w.SubscriberID, w.SeatedAt
		default:
			return err
		}

		if table != nil {
			capacity, err := e.freeTableTx(ctx, tx, *table)
			switch {
			case errors.Is(err, ErrTableNotTaken), errors.Is(err, ErrTableNotFound):
				// already released by staff; nothing to hand over
			case err != nil:
				return err
			default:
				promoted, err := e.offerTx(ctx, tx, capacity)
				if err != nil {
					return err
				}
				ob.promoted(promoted)
			}
		}

		if b.Role != model.RoleSubscriber || subID == nil {
			return nil
		}
		departed := e.now().UTC()
		arrived := departed
		if arrivedAt != nil {
			arrived = *arrivedAt
		}
		return e.visits.CreateTx(ctx, tx, &model.VisitRecord{
			SubscriberID: *subID,
			Code:         code,
			Diners:       b.Diners,
			ArrivedAt:    arrived,
			DepartedAt:   departed,
			Total:        b.Total,
			Discounted:   b.Discount > 0,
			Status:       string(model.StatusCompleted),
		})
	})
	if err != nil {
		return model.Bill{}, opErr("pay bill", err)
	}
	log.Printf("engine: bill %s paid by %s (total=%d cents)", code, method, b.Total)
	e.flush(ctx, &ob)
	return b, nil
}

// VisitHistory returns the archived visits of a subscriber, newest first.
func (e *Engine) VisitHistory(ctx context.Context, subscriberID uint64) ([]model.VisitRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	out, err := e.visits.ListBySubscriber(ctx, subscriberID)
	return out, opErr("visit history", err)
}
