package service

import (
	"washly/internal/apierror"
	"washly/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated user behind a request.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// canManage reports whether a may act on a session owned by owner. Cashiers
// only touch their own drawer; supervisors and administrators any drawer.
func (a Actor) canManage(owner uuid.UUID) bool {
	if a.ID == owner {
		return true
	}
	return a.Role == model.RoleSupervisor || a.Role == model.RoleAdministrador
}

func checkSessionOwner(a Actor, sess *model.CashSession) error {
	if !a.canManage(sess.UserID) {
		return apierror.Forbidden("la sesion de caja pertenece a otro usuario")
	}
	return nil
}
