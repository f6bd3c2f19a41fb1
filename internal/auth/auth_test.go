package auth

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"Admin":        RoleAdmin,
		" storekeeper": RoleStorekeeper,
		"":             RoleViewer,
		"superuser":    RoleViewer,
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRolePermissions(t *testing.T) {
	cases := []struct {
		role            Role
		edit, canDelete bool
	}{
		{RoleAdmin, true, true},
		{RoleManager, true, false},
		{RoleStorekeeper, true, false},
		{RoleOperator, false, false},
		{RoleViewer, false, false},
	}
	for _, tc := range cases {
		if tc.role.CanEdit() != tc.edit || tc.role.CanDelete() != tc.canDelete {
			t.Fatalf("%s: edit=%v delete=%v", tc.role, tc.role.CanEdit(), tc.role.CanDelete())
		}
	}
}

func TestResolve_TokenOverrideAndMissing(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Sign(secret, "sam", RoleManager, time.Hour)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	role, err := Resolve("", "Bearer "+token)
	if err != nil || role != RoleManager {
		t.Fatalf("Resolve(token) = %q, %v; want manager", role, err)
	}
	role, _ = Resolve("admin", token)
	if role != RoleAdmin {
		t.Fatalf("Resolve(override) = %q, want admin", role)
	}
	role, err = Resolve("", "")
	if err != nil || role != RoleViewer {
		t.Fatalf("Resolve(empty) = %q, %v; want viewer", role, err)
	}
	if _, err := Resolve("", "not-a-jwt"); err == nil {
		t.Fatalf("Resolve(garbage) returned nil error")
	}
}

func TestVerify(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Sign(secret, "ana", RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	claims, err := Verify(secret, token)
	if err != nil || claims.Role != "admin" || claims.Subject != "ana" {
		t.Fatalf("Verify = %+v, %v", claims, err)
	}
	if _, err := Verify([]byte("other"), token); err == nil {
		t.Fatalf("Verify with wrong secret returned nil error")
	}
	expired, _ := Sign(secret, "ana", RoleAdmin, -time.Minute)
	if _, err := Verify(secret, expired); err == nil {
		t.Fatalf("Verify of expired token returned nil error")
	}
}
