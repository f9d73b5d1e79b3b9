package protocol

import (
	"context"
	"errors"
	"log"

	"github.com/iliyamo/restaurant-reservation/internal/billing"
	"github.com/iliyamo/restaurant-reservation/internal/connection"
	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/service"
	"github.com/iliyamo/restaurant-reservation/internal/timewindow"
	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

// Engine is the subset of service.Engine the dispatcher drives.
type Engine interface {
	CreateReservation(ctx context.Context, in service.NewReservation) (model.Reservation, error)
	SuggestSlots(ctx context.Context, date, hhmm string, guests, n int) ([]timewindow.Slot, error)
	GetReservation(ctx context.Context, id uint64) (service.ReservationInfo, error)
	GetReservationByCode(ctx context.Context, code string) (service.ReservationInfo, error)
	UpdateReservation(ctx context.Context, id uint64, guests int, date, hhmm string) (model.Reservation, error)
	CancelReservation(ctx context.Context, code string) error
	MarkLate(ctx context.Context, code string) error
	AllocateTable(ctx context.Context, code string) (int, error)
	ListByDate(ctx context.Context, date string) ([]model.Reservation, error)
	AddToWaitingList(ctx context.Context, in service.NewWaitingEntry) (model.WaitingEntry, error)
	LeaveWaitingList(ctx context.Context, code string) error
	WaitingList(ctx context.Context) ([]model.WaitingEntry, error)
	GetBill(ctx context.Context, code string) (model.Bill, error)
	PayBill(ctx context.Context, code string, method model.PaymentMethod) (model.Bill, error)
	ReleaseTable(ctx context.Context, number int) (*model.WaitingEntry, error)
	ListTables(ctx context.Context) ([]model.Table, error)
	SweepExpiredReservations(ctx context.Context) (int, error)
}

// Authenticator backs #LOGIN and #IDENTIFY.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (utils.AccessToken, model.User, error)
	Verify(token string) (utils.Identity, error)
}

// DefaultSuggestionCount is used when Dispatcher.SuggestionCount is zero.
const DefaultSuggestionCount = 3

// Dispatcher executes parsed commands for one server. It is shared by all
// connections and holds no per-connection state of its own.
type Dispatcher struct {
	Engine          Engine
	Auth            Authenticator
	Registry        *connection.Registry
	SuggestionCount int
}

// Handle processes one request line for sess and returns the single
// response line. quit is true when the client asked to close.
func (d *Dispatcher) Handle(ctx context.Context, sess *connection.Session, raw string) (resp string, quit bool) {
	cmd, err := Parse(raw)
	if err != nil {
		var bad *BadRequestError
		switch {
		case errors.Is(err, ErrUnknownCommand):
			return errorLine("UNKNOWN_COMMAND"), false
		case errors.As(err, &bad):
			return errorLine("BAD_REQUEST", bad.Reason), false
		}
		return errorLine("BAD_REQUEST"), false
	}
	if dec := Authorize(sess.Role(), cmd); !dec.Allowed {
		return errorLine("FORBIDDEN", dec.Reason), false
	}
	if _, ok := cmd.(Quit); ok {
		return "BYE", true
	}
	resp, err = d.execute(ctx, sess, cmd)
	if err != nil {
		return d.fail(cmd, err), false
	}
	return resp, false
}

func (d *Dispatcher) execute(ctx context.Context, sess *connection.Session, cmd Command) (string, error) {
	switch c := cmd.(type) {
	case CreateReservation:
		r, err := d.Engine.CreateReservation(ctx, service.NewReservation{
			Code:   c.Code,
			Date:   c.Date,
			Time:   c.Time,
			Guests: c.Guests,
			Holder: model.Holder{SubscriberID: c.SubscriberID, Phone: c.Phone, Email: c.Email},
		})
		if err != nil {
			return "", err
		}
		return line("RESERVATION_CREATED", utoa(r.ID)), nil

	case SuggestSlots:
		n := d.SuggestionCount
		if n <= 0 {
			n = DefaultSuggestionCount
		}
		slots, err := d.Engine.SuggestSlots(ctx, c.Date, c.Time, c.Guests, n)
		if err != nil {
			return "", err
		}
		return encodeSlots(slots), nil

	case GetReservation:
		r, err := d.Engine.GetReservation(ctx, c.ID)
		if err != nil {
			return "", err
		}
		return EncodeReservation(r), nil

	case GetReservationByCode:
		r, err := d.Engine.GetReservationByCode(ctx, c.Code)
		if err != nil {
			return "", err
		}
		return EncodeReservation(r), nil

	case UpdateReservation:
		r, err := d.Engine.UpdateReservation(ctx, c.ID, c.Guests, c.Date, c.Time)
		if err != nil {
			return "", err
		}
		return line("RESERVATION_UPDATED", utoa(r.ID)), nil

	case CancelReservation:
		if err := d.Engine.CancelReservation(ctx, c.Code); err != nil {
			return "", err
		}
		return line("RESERVATION_CANCELED", c.Code), nil

	case MarkLate:
		if err := d.Engine.MarkLate(ctx, c.Code); err != nil {
			return "", err
		}
		return line("RESERVATION_LATE", c.Code), nil

	case ReceiveTable:
		n, err := d.Engine.AllocateTable(ctx, c.Code)
		if err != nil {
			return "", err
		}
		return line("TABLE_ASSIGNED", itoa(n)), nil

	case GetReservationsByDate:
		rs, err := d.Engine.ListByDate(ctx, c.Date)
		if err != nil {
			return "", err
		}
		return encodeDay(c.Date, rs), nil

	case AddWaitingList:
		w, err := d.Engine.AddToWaitingList(ctx, service.NewWaitingEntry{
			Code: c.Code, Contact: c.Contact, Guests: c.Guests, SubscriberID: c.SubscriberID,
		})
		if err != nil {
			return "", err
		}
		return line("WAITING_ADDED", w.Code), nil

	case LeaveWaitingList:
		if err := d.Engine.LeaveWaitingList(ctx, c.Code); err != nil {
			return "", err
		}
		return line("WAITING_REMOVED", c.Code), nil

	case GetWaitingList:
		entries, err := d.Engine.WaitingList(ctx)
		if err != nil {
			return "", err
		}
		return EncodeWaitingList(entries), nil

	case SubscribeWaitingList:
		if err := d.Registry.Subscribe(sess.ID); err != nil {
			return "", err
		}
		return "SUBSCRIBED", nil

	case UnsubscribeWaitingList:
		if err := d.Registry.Unsubscribe(sess.ID); err != nil {
			return "", err
		}
		return "UNSUBSCRIBED", nil

	case GetBill:
		b, err := d.Engine.GetBill(ctx, c.Code)
		if err != nil {
			return "", err
		}
		return encodeBill(b), nil

	case PayBill:
		b, err := d.Engine.PayBill(ctx, c.Code, model.PaymentMethod(c.Method))
		if err != nil {
			return "", err
		}
		return line("BILL_PAID", b.Code, billing.FormatAmount(b.Total)), nil

	case ReleaseTable:
		if _, err := d.Engine.ReleaseTable(ctx, c.Number); err != nil {
			return "", err
		}
		return line("TABLE_RELEASED", itoa(c.Number)), nil

	case ListTables:
		tables, err := d.Engine.ListTables(ctx)
		if err != nil {
			return "", err
		}
		return encodeTables(tables), nil

	case SweepExpired:
		n, err := d.Engine.SweepExpiredReservations(ctx)
		if err != nil {
			return "", err
		}
		return line("EXPIRED_SWEPT", itoa(n)), nil

	case Login:
		tok, u, err := d.Auth.Login(ctx, c.Username, c.Password)
		if err != nil {
			return "", err
		}
		if err := d.Registry.Identify(sess.ID, u.Username, u.Role); err != nil {
			return "", err
		}
		return line("LOGIN_OK", u.Username, u.Role, tok.Token), nil

	case Identify:
		id, err := d.Auth.Verify(c.Token)
		if err != nil {
			return "", err
		}
		if err := d.Registry.Identify(sess.ID, id.Username, id.Role); err != nil {
			return "", err
		}
		return line("IDENTIFIED", id.Username, id.Role), nil
	}
	return errorLine("UNKNOWN_COMMAND"), nil
}

// reasons maps business errors to the wire reason code.
var reasons = []struct {
	err  error
	code string
}{
	{service.ErrAllocationFailed, "ALLOCATION_FAILED"},
	{service.ErrSlotUnavailable, "SLOT_UNAVAILABLE"},
	{service.ErrDuplicateCode, "DUPLICATE_CODE"},
	{service.ErrInvalidGuests, "INVALID_GUESTS"},
	{service.ErrMissingCode, "MISSING_CODE"},
	{service.ErrMissingContact, "MISSING_CONTACT"},
	{service.ErrUnknownSubscriber, "UNKNOWN_SUBSCRIBER"},
	{service.ErrNotFound, "NOT_FOUND"},
	{service.ErrNotModifiable, "NOT_MODIFIABLE"},
	{service.ErrInvalidCode, "INVALID_CONFIRMATION_CODE"},
	{service.ErrAlreadyArrived, "ALREADY_ARRIVED"},
	{service.ErrNotToday, "NOT_TODAY"},
	{service.ErrNotConfirmed, "NOT_CONFIRMED"},
	{service.ErrNoTableAvailable, "NO_TABLE_AVAILABLE"},
	{service.ErrTableNotFound, "TABLE_NOT_FOUND"},
	{service.ErrTableNotTaken, "TABLE_NOT_TAKEN"},
	{service.ErrInvalidTable, "INVALID_TABLE"},
	{service.ErrBillNotFound, "BILL_NOT_FOUND"},
	{service.ErrNotSeated, "NOT_SEATED"},
	{service.ErrInvalidPaymentMethod, "INVALID_PAYMENT_METHOD"},
	{timewindow.ErrBadDate, "BAD_DATE"},
	{timewindow.ErrBadTime, "BAD_TIME"},
	{timewindow.ErrOutsideHours, "OUTSIDE_HOURS"},
	{timewindow.ErrInPast, "IN_PAST"},
	{timewindow.ErrTooSoon, "TOO_SOON"},
	{timewindow.ErrBeyondHorizon, "BEYOND_HORIZON"},
}

func reasonFor(err error) (string, bool) {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code, true
		}
	}
	return "", false
}

// fail renders err as the failure response of cmd. Some commands answer a
// known failure with a bare keyword instead of an ERROR line.
func (d *Dispatcher) fail(cmd Command, err error) string {
	if errors.Is(err, database.ErrNotReady) {
		return errorLine("DB_POOL_NOT_READY")
	}
	switch cmd.(type) {
	case GetReservation, GetReservationByCode:
		if errors.Is(err, service.ErrNotFound) {
			return "RESERVATION_NOT_FOUND"
		}
	case CancelReservation:
		if service.IsBusiness(err) {
			return errorLine("CANCEL_FAILED")
		}
	case ReceiveTable:
		switch {
		case errors.Is(err, service.ErrNoTableAvailable):
			return "NO_TABLE_AVAILABLE"
		case errors.Is(err, service.ErrInvalidCode):
			return "INVALID_CONFIRMATION_CODE"
		case errors.Is(err, service.ErrAllocationFailed):
			log.Printf("protocol: %s: %v", cmd.Verb(), err)
		}
	case AddWaitingList:
		if service.IsBusiness(err) {
			return errorLine("INSERT_FAILED", mustReason(err))
		}
	case GetBill, PayBill:
		if errors.Is(err, service.ErrBillNotFound) {
			return "BILL_NOT_FOUND"
		}
	case Login:
		if errors.Is(err, service.ErrInvalidCredentials) {
			return errorLine("INVALID_CREDENTIALS")
		}
	case Identify:
		if errors.Is(err, utils.ErrInvalidToken) {
			return errorLine("INVALID_TOKEN")
		}
	}
	if errors.Is(err, connection.ErrUnknownSession) {
		return errorLine("UNKNOWN_SESSION")
	}
	if code, ok := reasonFor(err); ok {
		return errorLine(code)
	}
	log.Printf("protocol: %s failed: %v", cmd.Verb(), err)
	return errorLine("DB_ERROR")
}

func mustReason(err error) string {
	if code, ok := reasonFor(err); ok {
		return code
	}
	return "UNKNOWN"
}
