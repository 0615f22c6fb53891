package store

import "errors"

var (
	ErrConflict         = errors.New("slot conflict")
	ErrNotFound         = errors.New("appointment not found")
	ErrAlreadyCancelled = errors.New("appointment already cancelled")
	ErrPastAppointment  = errors.New("appointment is in the past")
)
