package auth

// CanEditUser reports whether actor may modify target.
// Users may edit themselves; admins may edit anyone who is not an admin.
func CanEditUser(actor, target Profile) bool {
	if actor.ID != "" && actor.ID == target.ID {
		return true
	}
	return actor.Role == RoleAdmin && target.Role != RoleAdmin
}

// CanDeleteUser reports whether actor may delete target. Nobody deletes themselves.
func CanDeleteUser(actor, target Profile) bool {
	if actor.ID == target.ID {
		return false
	}
	return actor.Role == RoleAdmin && target.Role != RoleAdmin
}
