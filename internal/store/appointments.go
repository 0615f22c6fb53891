package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medbook/internal/domain"
)

// AppointmentRepository is the sole writer of appointment rows.
type AppointmentRepository interface {
	// CheckAndBook re-reads the day's confirmed appointments, rejects the
	// booking on any overlap and inserts it otherwise, all inside one unit
	// serialized per calendar date. Returns ErrConflict when the slot is
	// taken, including when a racing writer wins at the uniqueness guard.
	CheckAndBook(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	// Cancel transitions confirmed -> cancelled. Cancelled is terminal.
	Cancel(ctx context.Context, appointmentID uuid.UUID, now time.Time) (domain.Appointment, error)
	Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	// ListForOwner and ListAll order upcoming appointments first (ascending),
	// then past ones (also ascending), relative to now.
	ListForOwner(ctx context.Context, owner string, now time.Time) ([]domain.Appointment, error)
	ListAll(ctx context.Context, now time.Time) ([]domain.Appointment, error)
	// ListDay returns the confirmed appointments of one calendar date,
	// ascending by start time.
	ListDay(ctx context.Context, day time.Time) ([]domain.Appointment, error)
}
