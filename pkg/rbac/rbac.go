package rbac

import "fmt"

// 权限常量
const (
	PermissionReadOwnPerformance  = "performance:read_self"
	PermissionReadTeamPerformance = "performance:read_team"
	PermissionReadAllPerformance  = "performance:read_all"
	PermissionOperateEngine       = "engine:operate" // outbox 重放、手动对账
)

// 角色常量，与 principal kind 一一对应
const (
	RoleEmployee = "employee"
	RolePM       = "pm"
	RoleClient   = "client"
	RoleAdmin    = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleEmployee: {
		PermissionReadOwnPerformance,
		PermissionReadTeamPerformance,
	},
	RolePM: {
		PermissionReadOwnPerformance,
		PermissionReadTeamPerformance,
		PermissionReadAllPerformance,
	},
	RoleAdmin: {
		PermissionReadOwnPerformance,
		PermissionReadTeamPerformance,
		PermissionReadAllPerformance,
		PermissionOperateEngine,
	},
	RoleClient: {},
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role string, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %q lacks permission %q", e.Role, e.Permission)
}
