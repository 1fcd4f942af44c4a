package order

// Role is the acting staff role, resolved by the caller and passed in
// explicitly so the policy stays pure.
type Role string

const (
	RoleManager Role = "manager"
	RoleWaiter  Role = "waiter"
	RoleCashier Role = "cashier"
	RoleKitchen Role = "kitchen"
)

// AllowedNextStates returns the transitions a role may request from the
// current status. Kitchen staff may only mark an order in preparation as
// ready; every other state yields nothing for them. Unknown roles get the
// empty set: authorization fails closed, unlike draft restore which fails
// open (cart.decodeDraftOrEmpty).
func AllowedNextStates(current Status, role Role) []Status {
	switch role {
	case RoleManager, RoleWaiter, RoleCashier:
		return append([]Status(nil), AllowedTransitions[current]...)
	case RoleKitchen:
		if current == StatusInPreparation {
			return []Status{StatusDone}
		}
		return nil
	default:
		return nil
	}
}

// RoleAllows reports whether role may move an order from current to next.
func RoleAllows(current Status, role Role, next Status) bool {
	for _, s := range AllowedNextStates(current, role) {
		if s == next {
			return true
		}
	}
	return false
}

// StrongestRole picks the least restricted role out of a claim set; roles
// outside the operational set are ignored.
func StrongestRole(roles []string) Role {
	rank := map[Role]int{RoleManager: 3, RoleCashier: 2, RoleWaiter: 2, RoleKitchen: 1}
	var best Role
	bestRank := 0
	for _, r := range roles {
		if n := rank[Role(r)]; n > bestRank {
			best, bestRank = Role(r), n
		}
	}
	return best
}
