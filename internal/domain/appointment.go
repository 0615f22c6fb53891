package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is a booked slot on the practice calendar. Rows are never
// deleted: cancellation flips the status and the record stays for history.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID           uuid.UUID         `bun:"id,pk,type:uuid"`
	SubjectName  string            `bun:"subject_name,notnull"`
	SubjectEmail string            `bun:"subject_email"`
	SubjectPhone string            `bun:"subject_phone"`
	StartTime    time.Time         `bun:"start_time,notnull"`
	EndTime      time.Time         `bun:"end_time,notnull"`
	Reason       string            `bun:"reason"`
	Notes        string            `bun:"notes"`
	Status       AppointmentStatus `bun:"status,notnull"`
	CreatedBy    string            `bun:"created_by,notnull"`
	CreatedFor   string            `bun:"created_for,notnull"`
	CreatedAt    time.Time         `bun:"created_at,notnull"`
	UpdatedAt    time.Time         `bun:"updated_at,notnull"`
	CancelledAt  *time.Time        `bun:"cancelled_at"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// IsPast reports whether the appointment has already started.
func (a *Appointment) IsPast(now time.Time) bool {
	return !a.StartTime.After(now)
}
