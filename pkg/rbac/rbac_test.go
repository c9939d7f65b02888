package rbac

import (
	"errors"
	"testing"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleEmployee, PermissionReadOwnPerformance, true},
		{RoleEmployee, PermissionReadTeamPerformance, true},
		{RoleEmployee, PermissionReadAllPerformance, false},
		{RolePM, PermissionReadAllPerformance, true},
		{RoleAdmin, PermissionOperateEngine, true},
		{RolePM, PermissionOperateEngine, false},
		{RoleClient, PermissionReadOwnPerformance, false},
		{"unknown", PermissionReadOwnPerformance, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.permission); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.want)
		}
	}
}

func TestCheckPermission_ReturnsTypedError(t *testing.T) {
	err := CheckPermission(RoleClient, PermissionReadOwnPerformance)
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if denied.Role != RoleClient {
		t.Errorf("expected role client, got %q", denied.Role)
	}
	if err := CheckPermission(RoleAdmin, PermissionReadAllPerformance); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}
