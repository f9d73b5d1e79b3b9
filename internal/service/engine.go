// Package service holds the reservation engine: the reservation state
// machine, slot capacity checks, best-fit table allocation, FIFO waiting
// list promotion and billing. Every multi-step operation runs in a single
// store transaction; side effects are delivered through Events after
// commit.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/billing"
	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/timewindow"
)

// Options configures an Engine. Zero values fall back to the stock policy,
// stock pricing, the wall clock and no listeners.
type Options struct {
	Policy  *timewindow.Policy
	Billing *billing.Calculator
	Clock   timewindow.Clock
	Events  Events
}

// Engine is the reservation lifecycle and table allocation core. It is
// safe for concurrent use; all coordination happens in the store.
type Engine struct {
	store        *database.Store
	reservations *repository.ReservationRepo
	tables       *repository.TableRepo
	waiting      *repository.WaitingRepo
	visits       *repository.VisitRepo
	users        *repository.UserRepo

	policy  timewindow.Policy
	billing billing.Calculator
	clock   timewindow.Clock
	events  Events
}

// NewEngine wires an engine over st. A nil or closed store is accepted;
// every operation then fails with database.ErrNotReady.
func NewEngine(st *database.Store, opts Options) *Engine {
	e := &Engine{
		store:        st,
		reservations: repository.NewReservationRepo(st),
		tables:       repository.NewTableRepo(st),
		waiting:      repository.NewWaitingRepo(st),
		visits:       repository.NewVisitRepo(st),
		users:        repository.NewUserRepo(st),
		policy:       timewindow.DefaultPolicy(),
		billing:      billing.NewCalculator(),
		clock:        timewindow.RealClock{},
		events:       NopEvents{},
	}
	if opts.Policy != nil {
		e.policy = *opts.Policy
	}
	if opts.Billing != nil {
		e.billing = *opts.Billing
	}
	if opts.Clock != nil {
		e.clock = opts.Clock
	}
	if opts.Events != nil {
		e.events = opts.Events
	}
	return e
}

// SetEvents replaces the listener. It must be called before the engine
// serves traffic.
func (e *Engine) SetEvents(ev Events) {
	if ev == nil {
		ev = NopEvents{}
	}
	e.events = ev
}

// Policy returns the booking rules in force.
func (e *Engine) Policy() timewindow.Policy { return e.policy }

func (e *Engine) ready() error {
	if !e.store.Ready() {
		return database.ErrNotReady
	}
	return nil
}

// opErr wraps infrastructure errors with the operation name and passes
// business errors through untouched.
func opErr(op string, err error) error {
	if err == nil || IsBusiness(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// flush delivers events collected during a committed transaction.
func (e *Engine) flush(ctx context.Context, ob *outbox) {
	for _, w := range ob.notified {
		log.Printf("engine: waiting entry %s notified (guests=%d)", w.Code, w.Guests)
		e.events.WaitingNotified(w)
	}
	if !ob.listChanged {
		return
	}
	entries, err := e.waiting.List(ctx)
	if err != nil {
		log.Printf("engine: waiting list snapshot failed: %v", err)
		return
	}
	e.events.WaitingListChanged(entries)
}

// ReservationInfo is a reservation together with its holder's role.
type ReservationInfo struct {
	model.Reservation
	Role string
}

// NewReservation is the input of CreateReservation.
type NewReservation struct {
	Code   string
	Date   string // YYYY-MM-DD
	Time   string // HH:MM
	Guests int
	Holder model.Holder
}

// CreateReservation books a slot and returns the stored reservation in
// CONFIRMED. The capacity check sums the guests of every active
// reservation on the same date whose slot overlaps the requested one and
// compares it with the restaurant's total seating.
func (e *Engine) CreateReservation(ctx context.Context, in NewReservation) (model.Reservation, error) {
	if err := e.ready(); err != nil {
		return model.Reservation{}, err
	}
	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" {
		return model.Reservation{}, ErrMissingCode
	}
	if in.Guests < 1 {
		return model.Reservation{}, ErrInvalidGuests
	}
	slot, err := e.policy.Slot(in.Date, in.Time)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := e.policy.ValidateBooking(e.clock.Now(), slot); err != nil {
		return model.Reservation{}, err
	}
	holder := in.Holder
	if holder.SubscriberID == nil {
		holder.Phone = strings.TrimSpace(holder.Phone)
		holder.Email = strings.TrimSpace(holder.Email)
		if holder.Phone == "" && holder.Email == "" {
			return model.Reservation{}, ErrMissingContact
		}
	} else {
		holder.Phone, holder.Email = "", ""
	}

	res := model.Reservation{
		Code:         in.Code,
		Date:         slot.Date(),
		Time:         slot.Time(),
		Guests:       in.Guests,
		SubscriberID: holder.SubscriberID,
		Phone:        holder.Phone,
		Email:        holder.Email,
		Status:       model.StatusConfirmed,
		CreatedAt:    e.clock.Now().UTC(),
	}
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		if res.SubscriberID != nil {
			role, err := e.users.RoleOfTx(ctx, tx, res.SubscriberID)
			if err != nil {
				return err
			}
			if role == model.RoleGuest {
				return ErrUnknownSubscriber
			}
		}
		if err := e.ensureCodeFreeTx(ctx, tx, res.Code); err != nil {
			return err
		}
		if err := e.checkCapacityTx(ctx, tx, slot, res.Guests, 0); err != nil {
			return err
		}
		if err := e.reservations.CreateTx(ctx, tx, &res); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateCode
			}
			return err
		}
		return nil
	})
	if err != nil {
		return model.Reservation{}, opErr("create reservation", err)
	}
	log.Printf("engine: reservation %s created for %s %s (guests=%d)", res.Code, res.Date, res.Time, res.Guests)
	return res, nil
}

// ensureCodeFreeTx enforces code uniqueness across reservations and the
// waiting list.
func (e *Engine) ensureCodeFreeTx(ctx context.Context, tx *sql.Tx, code string) error {
	taken, err := e.reservations.CodeExistsTx(ctx, tx, code)
	if err != nil {
		return err
	}
	if !taken {
		taken, err = e.waiting.CodeExistsTx(ctx, tx, code)
		if err != nil {
			return err
		}
	}
	if taken {
		return ErrDuplicateCode
	}
	return nil
}

// checkCapacityTx locks the date's active reservations and verifies guests
// more people fit into slot. exclude skips one reservation id (its own
// prior booking during an update).
func (e *Engine) checkCapacityTx(ctx context.Context, tx *sql.Tx, slot timewindow.Slot, guests int, exclude uint64) error {
	active, err := e.reservations.ActiveByDateTx(ctx, tx, slot.Date())
	if err != nil {
		return err
	}
	capacity, err := e.tables.TotalCapacityTx(ctx, tx)
	if err != nil {
		return err
	}
	booked, err := e.overlappingGuests(active, slot, exclude)
	if err != nil {
		return err
	}
	if booked+guests > capacity {
		return ErrSlotUnavailable
	}
	return nil
}

func (e *Engine) overlappingGuests(active []model.Reservation, slot timewindow.Slot, exclude uint64) (int, error) {
	total := 0
	for _, r := range active {
		if r.ID == exclude {
			continue
		}
		other, err := e.policy.Slot(r.Date, r.Time)
		if err != nil {
			return 0, fmt.Errorf("reservation %d has a malformed slot: %w", r.ID, err)
		}
		if slot.Overlaps(other) {
			total += r.Guests
		}
	}
	return total, nil
}

// SuggestSlots returns up to n alternative slots that could hold guests,
// scanning forward hour by hour from the requested slot: first the rest of
// that day, then the following days up to the booking horizon.
func (e *Engine) SuggestSlots(ctx context.Context, date, hhmm string, guests, n int) ([]timewindow.Slot, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if guests < 1 {
		return nil, ErrInvalidGuests
	}
	from, err := e.policy.Slot(date, hhmm)
	if err != nil {
		return nil, err
	}
	out := make([]timewindow.Slot, 0, n)
	if n <= 0 {
		return out, nil
	}
	capacity, err := e.tables.TotalCapacity(ctx)
	if err != nil {
		return nil, opErr("suggest slots", err)
	}
	if guests > capacity {
		return out, nil
	}

	byDate := make(map[string][]model.Reservation)
	var scanErr error
	e.policy.ScanForward(e.clock.Now(), from, func(s timewindow.Slot) bool {
		day := s.Date()
		active, ok := byDate[day]
		if !ok {
			active, scanErr = e.reservations.ListByDate(ctx, day, model.ActiveStatuses...)
			if scanErr != nil {
				return false
			}
			byDate[day] = active
		}
		booked, err := e.overlappingGuests(active, s, 0)
		if err != nil {
			scanErr = err
			return false
		}
		if booked+guests <= capacity {
			out = append(out, s)
		}
		return len(out) < n
	})
	if scanErr != nil {
		return nil, opErr("suggest slots", scanErr)
	}
	return out, nil
}

func (e *Engine) withRole(ctx context.Context, r model.Reservation) (ReservationInfo, error) {
	role, err := e.users.RoleOf(ctx, r.SubscriberID)
	if err != nil {
		return ReservationInfo{}, err
	}
	return ReservationInfo{Reservation: r, Role: role}, nil
}

// GetReservation returns the reservation with id.
func (e *Engine) GetReservation(ctx context.Context, id uint64) (ReservationInfo, error) {
	if err := e.ready(); err != nil {
		return ReservationInfo{}, err
	}
	r, err := e.reservations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrReservationNotFound) {
		return ReservationInfo{}, ErrNotFound
	}
	if err != nil {
		return ReservationInfo{}, opErr("get reservation", err)
	}
	info, err := e.withRole(ctx, r)
	return info, opErr("get reservation", err)
}

// GetReservationByCode returns the reservation holding code.
func (e *Engine) GetReservationByCode(ctx context.Context, code string) (ReservationInfo, error) {
	if err := e.ready(); err != nil {
		return ReservationInfo{}, err
	}
	r, err := e.reservations.GetByCode(ctx, strings.TrimSpace(code))
	if errors.Is(err, repository.ErrReservationNotFound) {
		return ReservationInfo{}, ErrNotFound
	}
	if err != nil {
		return ReservationInfo{}, opErr("get reservation", err)
	}
	info, err := e.withRole(ctx, r)
	return info, opErr("get reservation", err)
}

// ListByDate returns the active reservations on date ordered by start time.
func (e *Engine) ListByDate(ctx context.Context, date string) ([]model.Reservation, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := timewindow.ParseDate(date, e.policy.Location); err != nil {
		return nil, err
	}
	out, err := e.reservations.ListByDate(ctx, date, model.ActiveStatuses...)
	return out, opErr("list reservations", err)
}

// UpdateReservation moves a CONFIRMED or LATE reservation to a new slot
// and party size. The window and capacity rules of CreateReservation apply,
// ignoring the reservation's own current booking.
func (e *Engine) UpdateReservation(ctx context.Context, id uint64, guests int, date, hhmm string) (model.Reservation, error) {
	if err := e.ready(); err != nil {
		return model.Reservation{}, err
	}
	if guests < 1 {
		return model.Reservation{}, ErrInvalidGuests
	}
	slot, err := e.policy.Slot(date, hhmm)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := e.policy.ValidateBooking(e.clock.Now(), slot); err != nil {
		return model.Reservation{}, err
	}
	var out model.Reservation
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.reservations.GetByIDTx(ctx, tx, id)
		if errors.Is(err, repository.ErrReservationNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if cur.Status != model.StatusConfirmed && cur.Status != model.StatusLate {
			return ErrNotModifiable
		}
		if err := e.checkCapacityTx(ctx, tx, slot, guests, cur.ID); err != nil {
			return err
		}
		err = e.reservations.UpdateSlotTx(ctx, tx, cur.ID, cur.Status, slot.Date(), slot.Time(), guests)
		if errors.Is(err, repository.ErrConflict) {
			return ErrNotModifiable
		}
		if err != nil {
			return err
		}
		cur.Date, cur.Time, cur.Guests = slot.Date(), slot.Time(), guests
		out = cur
		return nil
	})
	if err != nil {
		return model.Reservation{}, opErr("update reservation", err)
	}
	return out, nil
}

// CancelReservation cancels the reservation holding code. An ARRIVED
// reservation gives its table back in the same transaction; either way the
// waiting list is offered the freed capacity.
func (e *Engine) CancelReservation(ctx context.Context, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	var ob outbox
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.reservations.GetByCodeTx(ctx, tx, strings.TrimSpace(code))
		if errors.Is(err, repository.ErrReservationNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if model.CanTransition(cur.Status, model.StatusCanceled) != nil {
			return ErrNotFound
		}
		if err := e.reservations.TransitionTx(ctx, tx, cur.ID, cur.Status, model.StatusCanceled); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrNotFound
			}
			return err
		}
		freed := 0
		if cur.Status == model.StatusArrived && cur.TableNumber != nil {
			freed, err = e.freeTableTx(ctx, tx, *cur.TableNumber)
			if err != nil {
				return err
			}
		}
		w, err := e.offerTx(ctx, tx, freed)
		if err != nil {
			return err
		}
		ob.promoted(w)
		return nil
	})
	if err != nil {
		return opErr("cancel reservation", err)
	}
	log.Printf("engine: reservation %s canceled", code)
	e.flush(ctx, &ob)
	return nil
}

// MarkLate flags a CONFIRMED reservation as LATE.
func (e *Engine) MarkLate(ctx context.Context, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.reservations.GetByCodeTx(ctx, tx, strings.TrimSpace(code))
		if errors.Is(err, repository.ErrReservationNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if cur.Status != model.StatusConfirmed {
			return ErrNotConfirmed
		}
		err = e.reservations.TransitionTx(ctx, tx, cur.ID, model.StatusConfirmed, model.StatusLate)
		if errors.Is(err, repository.ErrConflict) {
			return ErrNotConfirmed
		}
		return err
	})
	return opErr("mark late", err)
}

// ListTables returns the floor plan.
func (e *Engine) ListTables(ctx context.Context) ([]model.Table, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	out, err := e.tables.List(ctx)
	return out, opErr("list tables", err)
}

// SeedTables creates the given tables, skipping numbers that already exist,
// and returns how many were added.
func (e *Engine) SeedTables(ctx context.Context, tables []model.Table) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	added := 0
	for _, t := range tables {
		if t.Number <= 0 || t.Capacity <= 0 {
			return added, ErrInvalidTable
		}
		t.Status = model.TableAvailable
		err := e.tables.Create(ctx, t)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return added, opErr("seed tables", err)
		}
		added++
	}
	return added, nil
}

func (e *Engine) now() time.Time { return e.clock.Now() }
