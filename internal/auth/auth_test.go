package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func patient(username string) Identity {
	return Identity{Username: username, Role: RolePatient, Category: CategoryPatient}
}

func TestDecide_Matrix(t *testing.T) {
	cases := []struct {
		name       string
		actor      Identity
		action     Action
		ownsTarget bool
		allowed    bool
		reason     string
	}{
		{"patient books own slot", patient("alice"), ActionBookSelf, true, true, ""},
		{"patient books for someone else", patient("alice"), ActionBookOther, false, false, DenyRoleForbidden},
		{"patient views own", patient("alice"), ActionViewOwn, true, true, ""},
		{"patient views all", patient("alice"), ActionViewAll, false, false, DenyRoleForbidden},
		{"patient cancels own", patient("alice"), ActionCancelOwn, true, true, ""},
		{"patient cancels someone else's", patient("alice"), ActionCancelOwn, false, false, DenyNotOwner},
		{"patient cancels any", patient("alice"), ActionCancelAny, false, false, DenyRoleForbidden},

		{"staff books for other", Identity{Username: "s", Role: RoleStaff}, ActionBookOther, false, true, ""},
		{"staff views all", Identity{Username: "s", Role: RoleStaff}, ActionViewAll, false, true, ""},
		{"staff cancels any", Identity{Username: "s", Role: RoleStaff}, ActionCancelAny, false, true, ""},
		{"admin cancels any", Identity{Username: "a", Role: RoleAdmin}, ActionCancelAny, false, true, ""},
		{"admin views all", Identity{Username: "a", Role: RoleAdmin}, ActionViewAll, false, true, ""},

		{"unknown role", Identity{Username: "x", Role: Role("ghost")}, ActionViewOwn, true, false, DenyUnknownRole},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.actor, tc.action, tc.ownsTarget)
			if d.Allowed != tc.allowed {
				t.Fatalf("Allowed = %v, want %v (reason %q)", d.Allowed, tc.allowed, d.Reason)
			}
			if d.Reason != tc.reason {
				t.Fatalf("Reason = %q, want %q", d.Reason, tc.reason)
			}
		})
	}
}

func TestDecide_CategoryGate(t *testing.T) {
	vendor := Identity{Username: "v", Role: RolePatient, Category: Category("vendor")}

	for _, action := range []Action{ActionBookSelf, ActionCancelOwn} {
		d := Decide(vendor, action, true)
		if d.Allowed {
			t.Fatalf("%s: non-bookable category was allowed", action)
		}
		if d.Reason != DenyNotBookable {
			t.Fatalf("%s: reason = %q, want %q", action, d.Reason, DenyNotBookable)
		}
	}

	// the category gate never blocks reads
	if d := Decide(vendor, ActionViewOwn, true); !d.Allowed {
		t.Fatalf("view-own denied for non-bookable category: %q", d.Reason)
	}

	// nor does it apply to staff
	staff := Identity{Username: "s", Role: RoleStaff, Category: Category("vendor")}
	if d := Decide(staff, ActionBookOther, false); !d.Allowed {
		t.Fatalf("staff booking denied by category gate: %q", d.Reason)
	}
}

func TestStaticDirectory(t *testing.T) {
	dir := NewStaticDirectory([]Identity{patient("Alice"), {Username: "bob", Role: RoleStaff}})

	id, err := dir.Lookup(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if id.Username != "Alice" || id.Role != RolePatient {
		t.Fatalf("identity = %+v", id)
	}

	if _, err := dir.Lookup(context.Background(), "nobody"); !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("error = %v, want %v", err, ErrUnknownIdentity)
	}
}

func TestLoadStaticDirectory(t *testing.T) {
	write := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "directory.json")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write seed file: %v", err)
		}
		return path
	}

	t.Run("valid", func(t *testing.T) {
		path := write(t, `[
			{"username": "alice", "role": "patient", "category": "patient"},
			{"username": "sam", "role": "staff"}
		]`)
		dir, err := LoadStaticDirectory(path)
		if err != nil {
			t.Fatalf("LoadStaticDirectory error: %v", err)
		}
		id, err := dir.Lookup(context.Background(), "Sam")
		if err != nil {
			t.Fatalf("Lookup error: %v", err)
		}
		if id.Role != RoleStaff {
			t.Fatalf("role = %q, want %q", id.Role, RoleStaff)
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		path := write(t, `[{"username": "alice", "role": "superuser"}]`)
		if _, err := LoadStaticDirectory(path); err == nil {
			t.Fatal("expected error for unknown role")
		}
	})

	t.Run("missing username", func(t *testing.T) {
		path := write(t, `[{"username": " ", "role": "staff"}]`)
		if _, err := LoadStaticDirectory(path); err == nil {
			t.Fatal("expected error for blank username")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadStaticDirectory(filepath.Join(t.TempDir(), "absent.json")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}
