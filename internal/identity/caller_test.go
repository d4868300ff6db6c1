package identity

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseCaller_OK(t *testing.T) {
	id := uuid.New()

	c, err := ParseCaller(" "+id.String()+" ", "Admin, customer,admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.UserID != id {
		t.Fatalf("expected user id %s, got %s", id, c.UserID)
	}
	if len(c.Roles) != 2 || !c.IsAdmin() || !c.HasRole(RoleCustomer) {
		t.Fatalf("unexpected roles: %v", c.Roles)
	}
	if !c.Is(id) || c.Is(uuid.New()) {
		t.Fatalf("Is must match only own id")
	}
}

func TestParseCaller_DefaultsToCustomer(t *testing.T) {
	c, err := ParseCaller(uuid.NewString(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Roles) != 1 || c.Roles[0] != RoleCustomer {
		t.Fatalf("expected customer role, got %v", c.Roles)
	}
}

func TestParseCaller_Invalid(t *testing.T) {
	if _, err := ParseCaller("not-a-uuid", "admin"); err != ErrInvalidUserID {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
	if _, err := ParseCaller(uuid.Nil.String(), "admin"); err != ErrInvalidUserID {
		t.Fatalf("expected ErrInvalidUserID for nil uuid, got %v", err)
	}
	if _, err := ParseCaller(uuid.NewString(), "root"); err != ErrUnknownRole {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}
