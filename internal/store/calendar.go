package store

import (
	"context"
	"time"

	"medbook/internal/domain"
)

// DayTx is the transactional view of one calendar date, held under that
// date's lock. Bookings for different dates never share a DayTx.
type DayTx interface {
	ListConfirmed(ctx context.Context, dayStart, dayEnd time.Time) ([]domain.Appointment, error)
	Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}
