package model

// Role is the staff role that selects a dashboard layout.
type Role string

const (
	RoleDoctor Role = "doctor"
	RoleNurse  Role = "nurse"
	RoleAdmin  Role = "admin"
)

// UnmarshalText rejects roles outside the declared set.
func (r *Role) UnmarshalText(b []byte) error {
	v, err := parseEnum("role", string(b), RoleDoctor, RoleNurse, RoleAdmin)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Permission names checked by the dashboard before offering a mutation.
const (
	PermUpdateTasks     = "tasks:update"
	PermUpdateResources = "resources:update"
	PermViewAnalytics   = "analytics:view"
)

// User is the authenticated member of staff.
type User struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

// Can reports whether the user holds the named permission. Admins hold
// every permission.
func (u *User) Can(perm string) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleAdmin {
		return true
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
