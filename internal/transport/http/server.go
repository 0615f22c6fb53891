// Package http exposes the booking operations over HTTP. It owns no
// business rules: it decodes requests, asks the booking service and maps
// each typed outcome to a status code.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"medbook/internal/auth"
	"medbook/internal/domain"
	"medbook/internal/service/booking"
	"medbook/internal/store"
)

type bookingService interface {
	Book(ctx context.Context, actor auth.Identity, in booking.BookInput) (domain.Appointment, error)
	Cancel(ctx context.Context, actor auth.Identity, appointmentID uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, actor auth.Identity) ([]domain.Appointment, error)
	AvailableSlots(ctx context.Context, date string) (available, taken []string, err error)
}

type Server struct {
	svc      bookingService
	dir      auth.Directory
	secret   []byte
	log      *slog.Logger
	validate *validator.Validate
}

func NewServer(svc bookingService, dir auth.Directory, secret []byte, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	v := validator.New()
	// report json field names in validation messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		svc:      svc,
		dir:      dir,
		secret:   secret,
		log:      log.With(slog.String("component", "http.booking")),
		validate: v,
	}
}

func (s *Server) Register(e *echo.Echo) {
	g := e.Group("/api/v1", Principal(s.secret, s.dir))
	g.GET("/appointments", s.listAppointments)
	g.POST("/appointments", s.bookAppointment)
	g.POST("/appointments/:id/cancel", s.cancelAppointment)
	g.GET("/slots", s.availableSlots)
}

type bookRequest struct {
	SubjectName  string `json:"subject_name" validate:"required"`
	SubjectEmail string `json:"subject_email" validate:"omitempty,email"`
	SubjectPhone string `json:"subject_phone"`
	Date         string `json:"date" validate:"required"`
	Start        string `json:"start" validate:"required"`
	Reason       string `json:"reason"`
	Notes        string `json:"notes"`
	Owner        string `json:"owner"`
}

type appointmentResponse struct {
	ID           string `json:"id"`
	SubjectName  string `json:"subject_name"`
	SubjectEmail string `json:"subject_email,omitempty"`
	SubjectPhone string `json:"subject_phone,omitempty"`
	Date         string `json:"date"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Reason       string `json:"reason,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Status       string `json:"status"`
	CreatedBy    string `json:"created_by"`
	CreatedFor   string `json:"created_for"`
	CreatedAt    string `json:"created_at"`
}

func (s *Server) bookAppointment(c echo.Context) error {
	log := s.log.With(slog.String("op", "book"))

	actor, ok := actorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated identity")
	}

	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(validationMessage(err)))
	}

	appt, err := s.svc.Book(c.Request().Context(), actor, booking.BookInput{
		SubjectName:  req.SubjectName,
		SubjectEmail: req.SubjectEmail,
		SubjectPhone: req.SubjectPhone,
		Date:         req.Date,
		Start:        req.Start,
		Reason:       req.Reason,
		Notes:        req.Notes,
		Owner:        req.Owner,
	})
	if err != nil {
		return s.writeError(c, log, err, slog.String("actor", actor.Username))
	}

	log.Info("appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("actor", actor.Username),
		slog.String("owner", appt.CreatedFor),
		slog.Time("start_time", appt.StartTime),
	)
	return c.JSON(http.StatusCreated, toAppointmentResponse(appt))
}

func (s *Server) cancelAppointment(c echo.Context) error {
	log := s.log.With(slog.String("op", "cancel"))

	actor, ok := actorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated identity")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("appointment id must be a UUID"))
	}

	appt, err := s.svc.Cancel(c.Request().Context(), actor, id)
	if err != nil {
		return s.writeError(c, log, err, slog.String("actor", actor.Username), slog.String("appointment_id", id.String()))
	}

	log.Info("appointment cancelled",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("actor", actor.Username),
	)
	return c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (s *Server) listAppointments(c echo.Context) error {
	log := s.log.With(slog.String("op", "list"))

	actor, ok := actorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated identity")
	}

	appts, err := s.svc.List(c.Request().Context(), actor)
	if err != nil {
		return s.writeError(c, log, err, slog.String("actor", actor.Username))
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return c.JSON(http.StatusOK, map[string]any{"appointments": out})
}

func (s *Server) availableSlots(c echo.Context) error {
	log := s.log.With(slog.String("op", "slots"))

	if _, ok := actorFrom(c); !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated identity")
	}

	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "" {
		return c.JSON(http.StatusBadRequest, errorBody("date query parameter is required"))
	}

	available, taken, err := s.svc.AvailableSlots(c.Request().Context(), date)
	if err != nil {
		return s.writeError(c, log, err, slog.String("date", date))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"date":            date,
		"available_slots": available,
		"taken_slots":     taken,
	})
}

// writeError maps each typed outcome to its status code. Anything unmapped
// is an infrastructure failure: logged and surfaced as service-unavailable
// so callers know to retry rather than change their request.
func (s *Server) writeError(c echo.Context, log *slog.Logger, err error, args ...any) error {
	var vErr *booking.ValidationError
	var tErr *booking.TemporalError
	var dErr *booking.DeniedError

	switch {
	case errors.As(err, &vErr):
		return c.JSON(http.StatusBadRequest, errorBody(vErr.Error()))
	case errors.As(err, &tErr):
		return c.JSON(http.StatusUnprocessableEntity, errorBody(tErr.Error()))
	case errors.As(err, &dErr):
		return c.JSON(http.StatusForbidden, errorBody(dErr.Error()))
	case errors.Is(err, store.ErrConflict):
		return c.JSON(http.StatusConflict, errorBody("slot unavailable, pick a different one"))
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody("appointment not found"))
	case errors.Is(err, store.ErrAlreadyCancelled):
		return c.JSON(http.StatusConflict, errorBody("appointment is already cancelled"))
	case errors.Is(err, store.ErrPastAppointment):
		return c.JSON(http.StatusUnprocessableEntity, errorBody("past appointments cannot be cancelled"))
	}

	log.Error("request failed", append([]any{slog.Any("err", err)}, args...)...)
	return c.JSON(http.StatusServiceUnavailable, errorBody("service unavailable"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "invalid request body"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return strings.ToLower(fe.Field()) + " is required"
	case "email":
		return strings.ToLower(fe.Field()) + " must be a valid email address"
	}
	return strings.ToLower(fe.Field()) + " is invalid"
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:           a.ID.String(),
		SubjectName:  a.SubjectName,
		SubjectEmail: a.SubjectEmail,
		SubjectPhone: a.SubjectPhone,
		Date:         a.StartTime.Format("2006-01-02"),
		Start:        a.StartTime.Format("15:04"),
		End:          a.EndTime.Format("15:04"),
		Reason:       a.Reason,
		Notes:        a.Notes,
		Status:       string(a.Status),
		CreatedBy:    a.CreatedBy,
		CreatedFor:   a.CreatedFor,
		CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
