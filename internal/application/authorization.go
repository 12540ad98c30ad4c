package application

import "github.com/example/vehicle-scheduler/internal/scheduler"

// CanModify reports whether principal may edit or delete res: the owner and
// administrators may, disabled users never.
func CanModify(principal Principal, res scheduler.Reservation) bool {
	if !principal.Active() {
		return false
	}
	return principal.IsAdmin() || principal.UserID == res.OwnerID
}

// CanBook reports whether principal may create reservations.
func CanBook(principal Principal) bool {
	return principal.Active()
}

// CanManageUsers reports whether principal may use the user directory.
func CanManageUsers(principal Principal) bool {
	return principal.Active() && principal.IsAdmin()
}
