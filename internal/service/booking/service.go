// Package booking orchestrates appointment requests: validate the shape,
// check the temporal policy, ask the authorization gate, run the feasibility
// pre-check and hand the commit to the store. The service keeps no
// appointment state between calls; any number of instances may run
// concurrently as long as they share the store.
package booking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"medbook/internal/auth"
	"medbook/internal/domain"
	"medbook/internal/notify"
	"medbook/internal/store"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ValidationError reports malformed input: missing fields, bad formats.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// TemporalError reports a slot outside temporal policy: in the past or
// outside business hours. Recoverable by picking a different slot.
type TemporalError struct {
	msg string
}

func (e *TemporalError) Error() string {
	return e.msg
}

func temporalError(msg string) error {
	return &TemporalError{msg: msg}
}

// DeniedError carries the gate's explicit denial reason code.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "authorization denied: " + e.Reason
}

// Notifier receives fire-and-forget notification requests after successful
// commits.
type Notifier interface {
	Enqueue(req notify.Request)
}

type Service struct {
	repo          store.AppointmentRepository
	notifier      Notifier
	hours         domain.BusinessHours
	practiceName  string
	practiceEmail string
	now           func() time.Time
}

func NewService(repo store.AppointmentRepository, notifier Notifier, hours domain.BusinessHours, practiceName, practiceEmail string) *Service {
	return &Service{
		repo:          repo,
		notifier:      notifier,
		hours:         hours,
		practiceName:  practiceName,
		practiceEmail: practiceEmail,
		now:           time.Now,
	}
}

type BookInput struct {
	SubjectName  string
	SubjectEmail string
	SubjectPhone string
	Date         string // 2006-01-02
	Start        string // 15:04
	Reason       string
	Notes        string
	// Owner is the identity the appointment belongs to. Empty means the
	// actor books for itself; staff may set it to any identity.
	Owner string
}

// Book runs the full request pipeline. Gate order is fixed: shape, time
// parse, past rejection, business hours, authorization, feasibility, commit.
// A request repeated unchanged after a rejection hits the same gate again.
func (s *Service) Book(ctx context.Context, actor auth.Identity, in BookInput) (domain.Appointment, error) {
	subject := strings.TrimSpace(in.SubjectName)
	if subject == "" {
		return domain.Appointment{}, validationError("subject_name is required")
	}
	if strings.TrimSpace(in.Date) == "" {
		return domain.Appointment{}, validationError("date is required")
	}
	if strings.TrimSpace(in.Start) == "" {
		return domain.Appointment{}, validationError("start is required")
	}

	start, err := parseSlot(in.Date, in.Start)
	if err != nil {
		return domain.Appointment{}, err
	}
	end := domain.SlotEnd(start, s.hours.VisitLength)

	now := s.now().UTC()
	if !start.After(now) {
		return domain.Appointment{}, temporalError("cannot book a slot in the past")
	}
	if !domain.WithinBusinessHours(start, s.hours) {
		return domain.Appointment{}, temporalError("slot is outside business hours")
	}

	owner := strings.TrimSpace(in.Owner)
	if owner == "" {
		owner = actor.Username
	}
	action := auth.ActionBookOther
	if owner == actor.Username {
		action = auth.ActionBookSelf
	}
	if d := auth.Decide(actor, action, owner == actor.Username); !d.Allowed {
		return domain.Appointment{}, &DeniedError{Reason: d.Reason}
	}

	// fast, friendly rejection; the store re-checks under the day lock and
	// the uniqueness guard has the final word
	existing, err := s.repo.ListDay(ctx, start)
	if err != nil {
		return domain.Appointment{}, err
	}
	for _, e := range existing {
		if domain.Overlaps(start, end, e.StartTime, e.EndTime) {
			return domain.Appointment{}, store.ErrConflict
		}
	}

	appt, err := s.repo.CheckAndBook(ctx, domain.Appointment{
		SubjectName:  subject,
		SubjectEmail: strings.TrimSpace(in.SubjectEmail),
		SubjectPhone: strings.TrimSpace(in.SubjectPhone),
		StartTime:    start,
		EndTime:      end,
		Reason:       strings.TrimSpace(in.Reason),
		Notes:        strings.TrimSpace(in.Notes),
		Status:       domain.AppointmentStatusConfirmed,
		CreatedBy:    actor.Username,
		CreatedFor:   owner,
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.emit(notify.KindBookingConfirmed, appt)
	return appt, nil
}

// Cancel transitions one appointment to cancelled: validate the id, gate on
// ownership, then let the store apply the not-already-cancelled and
// not-in-the-past rules atomically.
func (s *Service) Cancel(ctx context.Context, actor auth.Identity, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}

	current, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}

	owns := current.CreatedFor == actor.Username
	action := auth.ActionCancelAny
	if owns {
		action = auth.ActionCancelOwn
	}
	if d := auth.Decide(actor, action, owns); !d.Allowed {
		return domain.Appointment{}, &DeniedError{Reason: d.Reason}
	}

	appt, err := s.repo.Cancel(ctx, appointmentID, s.now().UTC())
	if err != nil {
		return domain.Appointment{}, err
	}

	s.emit(notify.KindBookingCancelled, appt)
	return appt, nil
}

// List returns the appointments the actor may see: all of them for staff
// and admin, only their own for patients. Upcoming first.
func (s *Service) List(ctx context.Context, actor auth.Identity) ([]domain.Appointment, error) {
	now := s.now().UTC()

	if d := auth.Decide(actor, auth.ActionViewAll, false); d.Allowed {
		return s.repo.ListAll(ctx, now)
	}
	if d := auth.Decide(actor, auth.ActionViewOwn, true); !d.Allowed {
		return nil, &DeniedError{Reason: d.Reason}
	}
	return s.repo.ListForOwner(ctx, actor.Username, now)
}

// AvailableSlots partitions the day's slot grid into free and taken start
// times, formatted as HH:MM.
func (s *Service) AvailableSlots(ctx context.Context, date string) (available, taken []string, err error) {
	day, perr := time.Parse(dateLayout, strings.TrimSpace(date))
	if perr != nil {
		return nil, nil, validationError("invalid date format, want YYYY-MM-DD")
	}
	today := domain.DayStart(s.now())
	if day.Before(today) {
		return nil, nil, temporalError("date is in the past")
	}

	existing, err := s.repo.ListDay(ctx, day)
	if err != nil {
		return nil, nil, err
	}

	free, busy := domain.PartitionSlots(day, s.hours, existing)
	return formatSlots(free), formatSlots(busy), nil
}

func (s *Service) emit(kind notify.Kind, appt domain.Appointment) {
	if s.notifier == nil {
		return
	}
	// subject confirmation plus practice inbox copy; delivery is another
	// collaborator's problem
	s.notifier.Enqueue(notify.Request{
		Kind:          kind,
		RecipientName: appt.SubjectName,
		Recipient:     appt.SubjectEmail,
		Appointment:   appt,
	})
	s.notifier.Enqueue(notify.Request{
		Kind:          kind,
		RecipientName: s.practiceName,
		Recipient:     s.practiceEmail,
		Appointment:   appt,
	})
}

func parseSlot(date, start string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, validationError("invalid date format, want YYYY-MM-DD")
	}
	t, err := time.Parse(timeLayout, strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, validationError("invalid time format, want HH:MM")
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

func formatSlots(slots []time.Time) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Format(timeLayout))
	}
	return out
}
