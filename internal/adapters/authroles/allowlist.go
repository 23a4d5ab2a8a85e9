package authroles

import (
	"strings"

	domainauth "github.com/novakinetix/academy/internal/domain/auth"
	"github.com/novakinetix/academy/internal/ports"
)

var _ ports.RoleAssigner = (*AllowList)(nil)

// AllowList assigns initial roles from explicit email lists.
// Anyone not listed becomes a student. When an address appears on several
// lists the most privileged role wins (admin, then intern, then parent).
type AllowList struct {
	admins  map[string]struct{}
	interns map[string]struct{}
	parents map[string]struct{}
}

// NewAllowList builds an AllowList. Emails are compared case-insensitively.
func NewAllowList(adminEmails, internEmails, parentEmails []string) *AllowList {
	return &AllowList{
		admins:  toSet(adminEmails),
		interns: toSet(internEmails),
		parents: toSet(parentEmails),
	}
}

// AssignRole returns the initial role for email.
func (a *AllowList) AssignRole(email string) domainauth.Role {
	if a == nil {
		return domainauth.RoleStudent
	}
	key := normalize(email)
	if key == "" {
		return domainauth.RoleStudent
	}
	switch {
	case has(a.admins, key):
		return domainauth.RoleAdmin
	case has(a.interns, key):
		return domainauth.RoleIntern
	case has(a.parents, key):
		return domainauth.RoleParent
	default:
		return domainauth.RoleStudent
	}
}

func toSet(emails []string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if k := normalize(e); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

func has(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
