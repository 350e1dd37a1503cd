package service

import (
	"github.com/google/uuid"
	"github.com/paperlane/paperlane/internal/auth"
)

// CanAccess reports whether actor may read or change a resource owned by ownerID.
// Administrators and the system actor may access everything.
func CanAccess(actor auth.User, ownerID string) bool {
	return actor.IsAdmin() || (actor.ID != "" && actor.ID == ownerID)
}

// Authorize must run before any state change on an owned resource.
func Authorize(actor auth.User, ownerID string, resourceType string, id uuid.UUID) error {
	if !CanAccess(actor, ownerID) {
		return NewErrUnauthorized(actor.ID, resourceType, id)
	}
	return nil
}

func RequireAdmin(actor auth.User) error {
	if !actor.IsAdmin() {
		return NewErrAdminRequired(actor.ID)
	}
	return nil
}
