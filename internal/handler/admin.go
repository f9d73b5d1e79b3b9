package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/connection"
	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/service"
	"github.com/iliyamo/restaurant-reservation/internal/timewindow"
)

// Engine is the part of service.Engine the operator API reads and drives.
type Engine interface {
	ListTables(ctx context.Context) ([]model.Table, error)
	WaitingList(ctx context.Context) ([]model.WaitingEntry, error)
	ListByDate(ctx context.Context, date string) ([]model.Reservation, error)
	SweepExpiredReservations(ctx context.Context) (int, error)
	ReleaseTable(ctx context.Context, number int) (*model.WaitingEntry, error)
	VisitHistory(ctx context.Context, subscriberID uint64) ([]model.VisitRecord, error)
}

// AdminHandler serves the staff-only observability and maintenance
// endpoints.
type AdminHandler struct {
	Engine   Engine
	Registry *connection.Registry
}

func NewAdminHandler(e Engine, r *connection.Registry) *AdminHandler {
	if e == nil || r == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Engine: e, Registry: r}
}

type tableView struct {
	Number   int    `json:"number"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

type waitingView struct {
	Code         string     `json:"code"`
	Guests       int        `json:"guests"`
	Status       string     `json:"status"`
	SubscriberID *uint64    `json:"subscriber_id,omitempty"`
	TableNumber  *int       `json:"table_number,omitempty"`
	NotifiedAt   *time.Time `json:"notified_at,omitempty"`
	SeatedAt     *time.Time `json:"seated_at,omitempty"`
}

type reservationView struct {
	ID           uint64  `json:"id"`
	Code         string  `json:"code"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	Guests       int     `json:"guests"`
	Status       string  `json:"status"`
	SubscriberID *uint64 `json:"subscriber_id,omitempty"`
	TableNumber  *int    `json:"table_number,omitempty"`
}

type visitView struct {
	Code       string    `json:"code"`
	Diners     int       `json:"diners"`
	ArrivedAt  time.Time `json:"arrived_at"`
	DepartedAt time.Time `json:"departed_at"`
	TotalCents int64     `json:"total_cents"`
	Discounted bool      `json:"discounted"`
}

func (h *AdminHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// fail maps engine errors onto HTTP statuses.
func fail(c echo.Context, err error) error {
	var status int
	switch {
	case errors.Is(err, database.ErrNotReady):
		status = http.StatusServiceUnavailable
	case errors.Is(err, service.ErrTableNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrTableNotTaken):
		status = http.StatusConflict
	case service.IsBusiness(err):
		status = http.StatusBadRequest
	default:
		c.Logger().Errorf("admin: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// Connections lists the live line protocol sessions.
func (h *AdminHandler) Connections(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"count": h.Registry.Len(), "sessions": h.Registry.Snapshot()})
}

// Tables returns the floor plan with current occupancy.
func (h *AdminHandler) Tables(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	tables, err := h.Engine.ListTables(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]tableView, 0, len(tables))
	for _, t := range tables {
		out = append(out, tableView{Number: t.Number, Capacity: t.Capacity, Status: string(t.Status)})
	}
	return c.JSON(http.StatusOK, out)
}

// Waiting returns the waiting list in FIFO order.
func (h *AdminHandler) Waiting(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	entries, err := h.Engine.WaitingList(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]waitingView, 0, len(entries))
	for _, w := range entries {
		out = append(out, waitingView{
			Code: w.Code, Guests: w.Guests, Status: string(w.Status),
			SubscriberID: w.SubscriberID, TableNumber: w.TableNumber, NotifiedAt: w.NotifiedAt,
			SeatedAt: w.SeatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Reservations lists the active reservations of ?date=YYYY-MM-DD.
func (h *AdminHandler) Reservations(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date is required"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	rs, err := h.Engine.ListByDate(ctx, date)
	if err != nil {
		if errors.Is(err, timewindow.ErrBadDate) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		return fail(c, err)
	}
	out := make([]reservationView, 0, len(rs))
	for _, r := range rs {
		out = append(out, reservationView{
			ID: r.ID, Code: r.Code, Date: r.Date, Time: r.Time, Guests: r.Guests,
			Status: string(r.Status), SubscriberID: r.SubscriberID, TableNumber: r.TableNumber,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Sweep runs the expiry sweep now.
func (h *AdminHandler) Sweep(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	n, err := h.Engine.SweepExpiredReservations(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}

// ReleaseTable frees table :number and reports who, if anyone, was
// offered it from the waiting list.
func (h *AdminHandler) ReleaseTable(c echo.Context) error {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table number"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	promoted, err := h.Engine.ReleaseTable(ctx, n)
	if err != nil {
		return fail(c, err)
	}
	resp := echo.Map{"released": n}
	if promoted != nil {
		resp["notified"] = promoted.Code
	}
	return c.JSON(http.StatusOK, resp)
}

// Visits returns the archived visits of subscriber :id.
func (h *AdminHandler) Visits(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid subscriber id"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	visits, err := h.Engine.VisitHistory(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	out := make([]visitView, 0, len(visits))
	for _, v := range visits {
		out = append(out, visitView{
			Code: v.Code, Diners: v.Diners, ArrivedAt: v.ArrivedAt, DepartedAt: v.DepartedAt,
			TotalCents: v.Total, Discounted: v.Discounted,
		})
	}
	return c.JSON(http.StatusOK, out)
}
