package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_DashboardURLFor(t *testing.T) {
	reg := DefaultRegistry()

	assert.Equal(t, "/student-dashboard", reg.DashboardURLFor(RoleStudent))
	assert.Equal(t, "/intern-dashboard", reg.DashboardURLFor(RoleIntern))
	assert.Equal(t, "/parent-dashboard", reg.DashboardURLFor(RoleParent))
	assert.Equal(t, "/admin", reg.DashboardURLFor(RoleAdmin))
	assert.Equal(t, "/", reg.DashboardURLFor(Role("ghost")))
}

func TestDefaultRegistry_DashboardsUniqueAndSelfAllowed(t *testing.T) {
	reg := DefaultRegistry()
	seen := map[string]Role{}

	for _, role := range Roles() {
		dash := reg.DashboardURLFor(role)
		require.NotEmpty(t, dash)
		require.NotEqual(t, "/", dash, "role %s has no dashboard", role)

		if other, dup := seen[dash]; dup {
			t.Fatalf("dashboard %s shared by %s and %s", dash, role, other)
		}
		seen[dash] = role

		assert.True(t, reg.Allows(role, dash), "role %s must be allowed on its own dashboard", role)
	}
}

func TestDefaultRegistry_Allows(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name string
		role Role
		path string
		want bool
	}{
		{name: "admin root", role: RoleAdmin, path: "/admin", want: true},
		{name: "admin subpath", role: RoleAdmin, path: "/admin/users", want: true},
		{name: "admin segment boundary", role: RoleAdmin, path: "/administrator", want: false},
		{name: "admin not on student", role: RoleAdmin, path: "/student-dashboard", want: false},
		{name: "student own", role: RoleStudent, path: "/student-dashboard/courses", want: true},
		{name: "student on admin", role: RoleStudent, path: "/admin", want: false},
		{name: "intern legacy path", role: RoleIntern, path: "/teacher-dashboard", want: true},
		{name: "intern legacy subpath", role: RoleIntern, path: "/teacher-dashboard/sessions", want: true},
		{name: "intern own", role: RoleIntern, path: "/intern-dashboard", want: true},
		{name: "parent own trailing slash", role: RoleParent, path: "/parent-dashboard/", want: true},
		{name: "parent on intern", role: RoleParent, path: "/intern-dashboard", want: false},
		{name: "unknown role", role: Role("ghost"), path: "/admin", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Allows(tt.role, tt.path))
		})
	}
}

func TestDefaultRegistry_Permissions(t *testing.T) {
	reg := DefaultRegistry()

	assert.Equal(t,
		[]Permission{PermManageUsers, PermCreateOpportunities, PermViewAllHours, PermSystemAdmin},
		reg.PermissionsFor(RoleAdmin),
	)
	assert.True(t, reg.HasPermission(RoleIntern, PermTutorStudents))
	assert.False(t, reg.HasPermission(RoleStudent, PermManageUsers))
	assert.Empty(t, reg.PermissionsFor(Role("ghost")))

	perms := reg.PermissionsFor(RoleStudent)
	perms[0] = PermSystemAdmin
	assert.False(t, reg.HasPermission(RoleStudent, PermSystemAdmin), "PermissionsFor must return a copy")
}

func TestNewRoleRegistry_CopiesInput(t *testing.T) {
	prefixes := []string{"/x"}
	reg := NewRoleRegistry(map[Role]RoleConfig{RoleStudent: {Dashboard: "/x", Prefixes: prefixes}})
	prefixes[0] = "/y"

	assert.True(t, reg.Allows(RoleStudent, "/x"))
	assert.False(t, reg.Allows(RoleStudent, "/y"))
}
