package auth

import "strings"

// Permission names a capability granted to a role.
type Permission string

const (
	PermViewCourses      Permission = "view_courses"
	PermRequestTutoring  Permission = "request_tutoring"
	PermApplyInternships Permission = "apply_internships"
	PermViewProgress     Permission = "view_progress"

	PermTutorStudents      Permission = "tutor_students"
	PermVolunteerSignup    Permission = "volunteer_signup"
	PermViewVolunteerHours Permission = "view_volunteer_hours"
	PermManageSessions     Permission = "manage_sessions"

	PermViewChildProgress    Permission = "view_child_progress"
	PermReceiveNotifications Permission = "receive_notifications"
	PermContactInterns       Permission = "contact_interns"

	PermManageUsers         Permission = "manage_users"
	PermCreateOpportunities Permission = "create_opportunities"
	PermViewAllHours        Permission = "view_all_hours"
	PermSystemAdmin         Permission = "system_admin"
)

// RoleConfig is the static routing and permission record for one role.
type RoleConfig struct {
	Dashboard   string
	Prefixes    []string
	Permissions []Permission
}

// RoleRegistry maps each role to its dashboard, allowed route prefixes and permissions.
// A registry is immutable after construction and safe for concurrent use.
type RoleRegistry struct {
	entries map[Role]RoleConfig
}

// NewRoleRegistry builds a registry from the given entries. Slices are copied.
func NewRoleRegistry(entries map[Role]RoleConfig) *RoleRegistry {
	m := make(map[Role]RoleConfig, len(entries))
	for role, cfg := range entries {
		m[role] = RoleConfig{
			Dashboard:   cfg.Dashboard,
			Prefixes:    append([]string(nil), cfg.Prefixes...),
			Permissions: append([]Permission(nil), cfg.Permissions...),
		}
	}
	return &RoleRegistry{entries: m}
}

// DefaultRegistry returns the academy's role table.
func DefaultRegistry() *RoleRegistry {
	return NewRoleRegistry(map[Role]RoleConfig{
		RoleStudent: {
			Dashboard:   "/student-dashboard",
			Prefixes:    []string{"/student-dashboard"},
			Permissions: []Permission{PermViewCourses, PermRequestTutoring, PermApplyInternships, PermViewProgress},
		},
		RoleIntern: {
			Dashboard:   "/intern-dashboard",
			Prefixes:    []string{"/intern-dashboard", "/teacher-dashboard"},
			Permissions: []Permission{PermTutorStudents, PermVolunteerSignup, PermViewVolunteerHours, PermManageSessions},
		},
		RoleParent: {
			Dashboard:   "/parent-dashboard",
			Prefixes:    []string{"/parent-dashboard"},
			Permissions: []Permission{PermViewChildProgress, PermReceiveNotifications, PermContactInterns},
		},
		RoleAdmin: {
			Dashboard:   "/admin",
			Prefixes:    []string{"/admin"},
			Permissions: []Permission{PermManageUsers, PermCreateOpportunities, PermViewAllHours, PermSystemAdmin},
		},
	})
}

// DashboardURLFor returns the dashboard root for role, or "/" when the role is unknown.
func (r *RoleRegistry) DashboardURLFor(role Role) string {
	if cfg, ok := r.entries[role]; ok && cfg.Dashboard != "" {
		return cfg.Dashboard
	}
	return "/"
}

// PermissionsFor returns a copy of the permissions granted to role.
func (r *RoleRegistry) PermissionsFor(role Role) []Permission {
	cfg, ok := r.entries[role]
	if !ok {
		return []Permission{}
	}
	return append([]Permission{}, cfg.Permissions...)
}

// HasPermission reports whether role has been granted perm.
func (r *RoleRegistry) HasPermission(role Role, perm Permission) bool {
	for _, p := range r.entries[role].Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Allows reports whether role may access path.
// Prefixes match whole path segments: "/admin" covers "/admin/users" but not "/administrator".
func (r *RoleRegistry) Allows(role Role, path string) bool {
	cfg, ok := r.entries[role]
	if !ok {
		return false
	}
	for _, prefix := range cfg.Prefixes {
		if matchesPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Prefixes returns every route prefix owned by any role.
func (r *RoleRegistry) Prefixes() []string {
	var out []string
	for _, role := range Roles() {
		out = append(out, r.entries[role].Prefixes...)
	}
	return out
}

func matchesPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
