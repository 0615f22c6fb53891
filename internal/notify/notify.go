// Package notify carries notification requests out of the booking path.
// The core only emits requests; delivery, templating and retries belong to
// whatever Sender is plugged in. A failed or dropped notification never
// affects the booking that produced it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"medbook/internal/domain"
)

type Kind string

const (
	KindBookingConfirmed Kind = "booking-confirmed"
	KindBookingCancelled Kind = "booking-cancelled"
)

// Request asks the delivery collaborator to notify one recipient about an
// appointment event.
type Request struct {
	Kind          Kind
	RecipientName string
	Recipient     string // email address
	Appointment   domain.Appointment
}

// Sender delivers one notification request. Implementations own their
// transport and retry policy.
type Sender interface {
	Send(ctx context.Context, req Request) error
}

// Dispatcher fans requests to a Sender from a bounded queue on a background
// worker. Enqueue never blocks: when the queue is full the request is
// dropped and logged.
type Dispatcher struct {
	sender      Sender
	log         *slog.Logger
	queue       chan Request
	sendTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func NewDispatcher(sender Sender, log *slog.Logger, queueSize int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		sender:      sender,
		log:         log.With(slog.String("component", "notify.dispatcher")),
		queue:       make(chan Request, queueSize),
		sendTimeout: 10 * time.Second,
		done:        make(chan struct{}),
	}
}

// Start launches the delivery worker. Safe to call once.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

// Close stops accepting requests, drains the queue and waits for the worker.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.queue)
	})
	<-d.done
}

// Enqueue hands a request to the worker, best-effort.
func (d *Dispatcher) Enqueue(req Request) {
	if req.Recipient == "" {
		d.log.Debug("notification skipped, no recipient",
			slog.String("kind", string(req.Kind)),
			slog.String("appointment_id", req.Appointment.ID.String()),
		)
		return
	}
	select {
	case d.queue <- req:
	default:
		d.log.Warn("notification queue full, dropping request",
			slog.String("kind", string(req.Kind)),
			slog.String("appointment_id", req.Appointment.ID.String()),
		)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for req := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := d.sender.Send(ctx, req)
		cancel()
		if err != nil {
			d.log.Error("notification delivery failed",
				slog.Any("err", err),
				slog.String("kind", string(req.Kind)),
				slog.String("recipient", req.Recipient),
				slog.String("appointment_id", req.Appointment.ID.String()),
			)
			continue
		}
		d.log.Debug("notification delivered",
			slog.String("kind", string(req.Kind)),
			slog.String("recipient", req.Recipient),
		)
	}
}

// LogSender records requests to the log instead of delivering them. Default
// for standalone operation without a mail collaborator.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(_ context.Context, req Request) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notification request",
		slog.String("kind", string(req.Kind)),
		slog.String("recipient", req.Recipient),
		slog.String("recipient_name", req.RecipientName),
		slog.Time("start_time", req.Appointment.StartTime),
	)
	return nil
}
