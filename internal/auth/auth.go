// Package auth holds the role model and the table-driven authorization gate
// for calendar operations. The gate is pure: it never touches storage, it
// only evaluates (role, action, ownership) against a fixed grant table.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Role string

const (
	// RolePatient is owner-scoped: it may act only on its own appointments.
	RolePatient Role = "patient"
	// RoleStaff may book for any identity, see all appointments and cancel any.
	RoleStaff Role = "staff"
	// RoleAdmin is a superset of staff; account management sits elsewhere.
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Category classifies owner-scoped accounts. Only appointment-eligible
// accounts may book or cancel; the category gate layers on top of the role
// gate and never widens it.
type Category string

const CategoryPatient Category = "patient"

// Identity is what the credential collaborator returns for a validated
// principal. Credential storage and password checking live outside this core.
type Identity struct {
	Username string   `json:"username"`
	Role     Role     `json:"role"`
	Category Category `json:"category"`
	Email    string   `json:"email,omitempty"`
}

type Action string

const (
	ActionBookSelf  Action = "book-for-self"
	ActionBookOther Action = "book-for-other"
	ActionViewOwn   Action = "view-own"
	ActionViewAll   Action = "view-all"
	ActionCancelOwn Action = "cancel-own"
	ActionCancelAny Action = "cancel-any"
)

// Denial reason codes. Denials are always explicit, never silent.
const (
	DenyUnknownRole   = "unknown-role"
	DenyRoleForbidden = "role-forbidden"
	DenyNotOwner      = "not-owner"
	DenyNotBookable   = "category-not-bookable"
)

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

var grants = map[Role]map[Action]bool{
	RolePatient: {
		ActionBookSelf:  true,
		ActionBookOther: false,
		ActionViewOwn:   true,
		ActionViewAll:   false,
		ActionCancelOwn: true,
		ActionCancelAny: false,
	},
	RoleStaff: {
		ActionBookSelf:  true,
		ActionBookOther: true,
		ActionViewOwn:   true,
		ActionViewAll:   true,
		ActionCancelOwn: true,
		ActionCancelAny: true,
	},
	RoleAdmin: {
		ActionBookSelf:  true,
		ActionBookOther: true,
		ActionViewOwn:   true,
		ActionViewAll:   true,
		ActionCancelOwn: true,
		ActionCancelAny: true,
	},
}

// ownershipSensitive actions require the actor to own the target record
// unless the role grants the any-record variant.
func ownershipSensitive(action Action) bool {
	switch action {
	case ActionBookSelf, ActionViewOwn, ActionCancelOwn:
		return true
	}
	return false
}

func booksOrCancels(action Action) bool {
	switch action {
	case ActionBookSelf, ActionBookOther, ActionCancelOwn, ActionCancelAny:
		return true
	}
	return false
}

// Decide evaluates the grant table for one actor and action. ownsTarget
// reports whether the target record's owner equals the actor; it is ignored
// for actions that are not ownership-sensitive.
func Decide(actor Identity, action Action, ownsTarget bool) Decision {
	if !actor.Role.Valid() {
		return deny(DenyUnknownRole)
	}
	if actor.Role == RolePatient && booksOrCancels(action) && actor.Category != CategoryPatient {
		return deny(DenyNotBookable)
	}
	if !grants[actor.Role][action] {
		return deny(DenyRoleForbidden)
	}
	if ownershipSensitive(action) && actor.Role == RolePatient && !ownsTarget {
		return deny(DenyNotOwner)
	}
	return allow()
}

// ErrUnknownIdentity is returned by a Directory for principals it has no
// record of.
var ErrUnknownIdentity = errors.New("unknown identity")

// Directory resolves a validated principal name to an Identity. The real
// credential store is an external collaborator behind this interface.
type Directory interface {
	Lookup(ctx context.Context, username string) (Identity, error)
}

// StaticDirectory is a fixed in-memory Directory, used for standalone
// operation and tests. Lookups are case-insensitive on the username.
type StaticDirectory struct {
	byName map[string]Identity
}

func NewStaticDirectory(identities []Identity) *StaticDirectory {
	d := &StaticDirectory{byName: make(map[string]Identity, len(identities))}
	for _, id := range identities {
		d.byName[strings.ToLower(id.Username)] = id
	}
	return d
}

func (d *StaticDirectory) Lookup(_ context.Context, username string) (Identity, error) {
	id, ok := d.byName[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return Identity{}, ErrUnknownIdentity
	}
	return id, nil
}

// LoadStaticDirectory reads a JSON array of identities from path. Entries
// with an empty username or an unknown role are rejected so a typo in the
// seed file fails at startup rather than at first lookup.
func LoadStaticDirectory(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}

	var identities []Identity
	if err := json.Unmarshal(data, &identities); err != nil {
		return nil, fmt.Errorf("parse directory file %s: %w", path, err)
	}

	for i, id := range identities {
		if strings.TrimSpace(id.Username) == "" {
			return nil, fmt.Errorf("directory entry %d has no username", i)
		}
		if !id.Role.Valid() {
			return nil, fmt.Errorf("directory entry %q has unknown role %q", id.Username, id.Role)
		}
	}

	return NewStaticDirectory(identities), nil
}
