package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tablebook/tablebook/internal/model"
	"github.com/tablebook/tablebook/internal/queue"
	"github.com/tablebook/tablebook/internal/repository"
	queue_publisher "github.com/tablebook/tablebook/internal/service"
	"github.com/tablebook/tablebook/internal/session"
	"github.com/tablebook/tablebook/internal/state"
)

// ReservationHandler exposes the reservation state to HTTP consumers.
// Handlers stay thin: they call only the state mutations and derived
// views, never the store directly.
type ReservationHandler struct {
	State    *state.ReservationState
	Sessions *session.Store
}

func NewReservationHandler(st *state.ReservationState, s *session.Store) *ReservationHandler {
	return &ReservationHandler{State: st, Sessions: s}
}

type listResp struct {
	Reservations []model.Reservation `json:"reservations"`
	Error        string              `json:"error,omitempty"`
	Loading      bool                `json:"loading"`
}

// List returns the cached reservations, optionally filtered by the
// status, type or date query parameter.  Filters compose left to
// right over the derived views; in practice consumers pass one.
func (h *ReservationHandler) List(c echo.Context) error {
	var items []model.Reservation
	switch {
	case c.QueryParam("status") != "":
		items = h.State.ByStatus(c.QueryParam("status"))
	case c.QueryParam("type") != "":
		items = h.State.ByType(c.QueryParam("type"))
	case c.QueryParam("date") != "":
		items = h.State.ByDate(c.QueryParam("date"))
	default:
		items = h.State.All()
	}
	return c.JSON(http.StatusOK, listResp{
		Reservations: items,
		Error:        h.State.Err(),
		Loading:      h.State.Loading(),
	})
}

// Get returns a single reservation by id.
func (h *ReservationHandler) Get(c echo.Context) error {
	res := h.State.ByID(c.Param("id"))
	if res == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return c.JSON(http.StatusOK, res)
}

// Create validates the payload, stores the new reservation and returns
// it.  The creator label is taken from the current session user.
func (h *ReservationHandler) Create(c echo.Context) error {
	var in state.NewReservationInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	createdBy := "Unknown"
	if u := h.Sessions.Current(); u != nil {
		createdBy = u.Name
	}
	res, err := h.State.CreateNew(c.Request().Context(), in, createdBy)
	if err != nil {
		var verr *repository.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Reason})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	h.publish(c, "created", res)
	return c.JSON(http.StatusCreated, res)
}

// Update merges the supplied fields over the reservation with the
// given id.  Unknown ids yield 404; the update itself is a no-op then.
func (h *ReservationHandler) Update(c echo.Context) error {
	var patch repository.ReservationPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.State.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		var verr *repository.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Reason})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if res == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	h.publish(c, "updated", *res)
	return c.JSON(http.StatusOK, res)
}

// Delete removes the reservation with the given id.  Deleting an
// absent id still succeeds.
func (h *ReservationHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.State.Remove(c.Request().Context(), id); err != nil {
		var verr *repository.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Reason})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	h.publish(c, "deleted", model.Reservation{ID: id})
	return c.NoContent(http.StatusNoContent)
}

// Refresh pulls sample records from the external source, merges them
// into the collection and returns the resulting view.  Failures are
// reported through the error field, never as a request failure.
func (h *ReservationHandler) Refresh(c echo.Context) error {
	h.State.Refresh(c.Request().Context())
	return c.JSON(http.StatusOK, listResp{
		Reservations: h.State.All(),
		Error:        h.State.Err(),
		Loading:      h.State.Loading(),
	})
}

// publish emits a mutation event, best-effort.
func (h *ReservationHandler) publish(c echo.Context, action string, res model.Reservation) {
	_ = queue_publisher.PublishReservationChanged(c.Request().Context(), queue.ReservationChangedEvent{
		Action:        action,
		ReservationID: res.ID,
		Status:        res.Status,
		Type:          res.Type,
		Date:          res.Date,
		Time:          res.Time,
		Guests:        res.Guests,
		ChangedBy:     h.Sessions.DisplayName(),
		ChangedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}
