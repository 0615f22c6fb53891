package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"medbook/internal/domain"
	"medbook/internal/store"
)

// liveSlotIndex is the partial unique index on start_time for confirmed
// rows. It is the final arbiter when two bookings race past the pre-check.
const liveSlotIndex = "appointments_live_slot"

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type dayTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) CheckAndBook(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.InDayTransaction(ctx, appt.StartTime, func(ctx context.Context, tx store.DayTx) error {
		if err := ensureSlotFree(ctx, tx, appt); err != nil {
			return err
		}
		a, err := tx.Insert(ctx, appt)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) Cancel(ctx context.Context, appointmentID uuid.UUID, now time.Time) (domain.Appointment, error) {
	// fetch first so the status transition can share the booking lock of the
	// appointment's own date
	current, err := r.Get(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendarDay(ctx, tx, current.StartTime); err != nil {
			return err
		}

		var row domain.Appointment
		err := tx.NewSelect().
			Model(&row).
			Where("id = ?", appointmentID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		if row.Status == domain.AppointmentStatusCancelled {
			return store.ErrAlreadyCancelled
		}
		if row.IsPast(now) {
			return store.ErrPastAppointment
		}

		cancelledAt := now.UTC()
		row.Status = domain.AppointmentStatusCancelled
		row.CancelledAt = &cancelledAt

		res, err := tx.NewUpdate().
			Model(&row).
			Column("status", "cancelled_at", "updated_at").
			Where("id = ?", appointmentID).
			Where("status = ?", domain.AppointmentStatusConfirmed).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrAlreadyCancelled
		}

		out = row
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var row domain.Appointment
	err := r.db.NewSelect().
		Model(&row).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return row, nil
}

func (r *AppointmentRepo) ListForOwner(ctx context.Context, owner string, now time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("created_for = ?", owner).
		OrderExpr("CASE WHEN start_time >= ? THEN 0 ELSE 1 END, start_time ASC", now).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListAll(ctx context.Context, now time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("CASE WHEN start_time >= ? THEN 0 ELSE 1 END, start_time ASC", now).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListDay(ctx context.Context, day time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("start_time >= ?", domain.DayStart(day)).
		Where("start_time < ?", domain.DayEnd(day)).
		Where("status = ?", domain.AppointmentStatusConfirmed).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InDayTransaction runs fn while holding the advisory lock for one calendar
// date, serializing all bookings of that date against each other. Different
// dates never block each other.
func (r *AppointmentRepo) InDayTransaction(ctx context.Context, day time.Time, fn func(ctx context.Context, tx store.DayTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendarDay(ctx, tx, day); err != nil {
			return err
		}
		return fn(ctx, dayTx{tx: tx})
	})
}

func lockCalendarDay(ctx context.Context, tx bun.Tx, day time.Time) error {
	key := domain.DayStart(day).Format("2006-01-02")
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

// ensureSlotFree is the in-transaction feasibility check: it rejects the
// candidate if it overlaps any confirmed appointment of the same date.
func ensureSlotFree(ctx context.Context, tx store.DayTx, appt domain.Appointment) error {
	existing, err := tx.ListConfirmed(ctx, domain.DayStart(appt.StartTime), domain.DayEnd(appt.StartTime))
	if err != nil {
		return err
	}
	for _, e := range existing {
		if domain.Overlaps(appt.StartTime, appt.EndTime, e.StartTime, e.EndTime) {
			return store.ErrConflict
		}
	}
	return nil
}

func (t dayTx) ListConfirmed(ctx context.Context, dayStart, dayEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := t.tx.NewSelect().
		Model(&rows).
		Where("start_time >= ?", dayStart).
		Where("start_time < ?", dayEnd).
		Where("status = ?", domain.AppointmentStatusConfirmed).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t dayTx) Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == liveSlotIndex {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	return m, nil
}
