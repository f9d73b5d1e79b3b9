package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

// NewWaitingEntry is the input of AddToWaitingList. Contact is already
// decoded.
type NewWaitingEntry struct {
	Code         string
	Contact      string
	Guests       int
	SubscriberID *uint64
}

// AddToWaitingList appends a walk-in party. When a free table already fits
// the party it is promoted straight away.
func (e *Engine) AddToWaitingList(ctx context.Context, in NewWaitingEntry) (model.WaitingEntry, error) {
	if err := e.ready(); err != nil {
		return model.WaitingEntry{}, err
	}
	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" {
		return model.WaitingEntry{}, ErrMissingCode
	}
	if in.Guests < 1 {
		return model.WaitingEntry{}, ErrInvalidGuests
	}
	w := model.WaitingEntry{
		Code:         in.Code,
		Contact:      strings.TrimSpace(in.Contact),
		SubscriberID: in.SubscriberID,
		Guests:       in.Guests,
		Status:       model.WaitingWaiting,
	}
	if w.SubscriberID == nil && w.Contact == "" {
		return model.WaitingEntry{}, ErrMissingContact
	}
	ob := outbox{listChanged: true}
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		if w.SubscriberID != nil {
			role, err := e.users.RoleOfTx(ctx, tx, w.SubscriberID)
			if err != nil {
				return err
			}
			if role == model.RoleGuest {
				return ErrUnknownSubscriber
			}
		}
		if err := e.ensureCodeFreeTx(ctx, tx, w.Code); err != nil {
			return err
		}
		if err := e.waiting.CreateTx(ctx, tx, &w, e.now()); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateCode
			}
			return err
		}
		promoted, err := e.offerTx(ctx, tx, 0)
		if err != nil {
			return err
		}
		ob.promoted(promoted)
		if promoted != nil && promoted.ID == w.ID {
			w = *promoted
		}
		return nil
	})
	if err != nil {
		return model.WaitingEntry{}, opErr("add to waiting list", err)
	}
	log.Printf("engine: waiting entry %s added (guests=%d)", w.Code, w.Guests)
	e.flush(ctx, &ob)
	return w, nil
}

// LeaveWaitingList withdraws an entry that has not been seated yet.
func (e *Engine) LeaveWaitingList(ctx context.Context, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		err := e.waiting.DeleteTx(ctx, tx, strings.TrimSpace(code))
		if errors.Is(err, repository.ErrWaitingNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return opErr("leave waiting list", err)
	}
	e.flush(ctx, &outbox{listChanged: true})
	return nil
}

// WaitingList returns every unpaid entry in FIFO order.
func (e *Engine) WaitingList(ctx context.Context) ([]model.WaitingEntry, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	out, err := e.waiting.List(ctx)
	return out, opErr("waiting list", err)
}
