package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"medbook/internal/domain"
)

type captureSender struct {
	mu   sync.Mutex
	got  []Request
	fail bool
}

func (s *captureSender) Send(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, req)
	if s.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (s *captureSender) requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.got))
	copy(out, s.got)
	return out
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, nil, 8)
	d.Start()

	appt := domain.Appointment{StartTime: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	d.Enqueue(Request{Kind: KindBookingConfirmed, Recipient: "a@example.com", Appointment: appt})
	d.Enqueue(Request{Kind: KindBookingCancelled, Recipient: "b@example.com", Appointment: appt})
	d.Close()

	got := sender.requests()
	if len(got) != 2 {
		t.Fatalf("delivered = %d, want 2", len(got))
	}
	if got[0].Kind != KindBookingConfirmed || got[1].Kind != KindBookingCancelled {
		t.Fatalf("delivery order = %s, %s", got[0].Kind, got[1].Kind)
	}
}

func TestDispatcher_SenderFailureDoesNotStopWorker(t *testing.T) {
	sender := &captureSender{fail: true}
	d := NewDispatcher(sender, nil, 8)
	d.Start()

	d.Enqueue(Request{Kind: KindBookingConfirmed, Recipient: "a@example.com"})
	d.Enqueue(Request{Kind: KindBookingConfirmed, Recipient: "b@example.com"})
	d.Close()

	if got := len(sender.requests()); got != 2 {
		t.Fatalf("attempted deliveries = %d, want 2", got)
	}
}

func TestDispatcher_SkipsEmptyRecipient(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, nil, 8)
	d.Start()

	d.Enqueue(Request{Kind: KindBookingConfirmed})
	d.Close()

	if got := len(sender.requests()); got != 0 {
		t.Fatalf("deliveries = %d, want 0", got)
	}
}

func TestDispatcher_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, nil, 1)
	// worker not started: the queue can only hold one request

	d.Enqueue(Request{Kind: KindBookingConfirmed, Recipient: "a@example.com"})

	delivered := make(chan struct{})
	go func() {
		d.Enqueue(Request{Kind: KindBookingConfirmed, Recipient: "b@example.com"})
		close(delivered)
	}()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	d.Start()
	d.Close()
	if got := len(sender.requests()); got != 1 {
		t.Fatalf("deliveries = %d, want 1 (second request dropped)", got)
	}
}
