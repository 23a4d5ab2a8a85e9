package auth

import "strings"

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleStudent Role = "student"
	RoleIntern  Role = "intern"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

// legacyTeacher is the historical name of the intern role still found in older rows.
const legacyTeacher = "teacher"

// Roles returns every canonical role in a stable order.
func Roles() []Role {
	return []Role{RoleStudent, RoleIntern, RoleParent, RoleAdmin}
}

// Valid reports whether r is a canonical role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleIntern, RoleParent, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// NormalizeRole maps a persisted role string onto the canonical enumeration.
// The legacy "teacher" value maps to RoleIntern. The boolean is false for
// values that are not recognised.
func NormalizeRole(raw string) (Role, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == legacyTeacher {
		return RoleIntern, true
	}
	r := Role(v)
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// RoleOrDefault normalizes raw and falls back to RoleStudent.
func RoleOrDefault(raw string) Role {
	if r, ok := NormalizeRole(raw); ok {
		return r
	}
	return RoleStudent
}
