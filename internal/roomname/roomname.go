// Package roomname builds the room names shared by clients, the token
// service and the agent. Owners share one standing room per business;
// customers and anonymous visitors get per-session rooms.
package roomname

const (
	RoleOwner    = "owner"
	RoleCustomer = "customer"
	RoleGeneral  = "general"
)

// ForRole returns the room name for a role. businessID may be empty for
// customer and general roles; sessionID is ignored for owners.
func ForRole(role, businessID, sessionID string) string {
	switch role {
	case RoleOwner:
		return "owner-" + businessID
	case RoleCustomer:
		if businessID == "" {
			businessID = RoleGeneral
		}
		return businessID + "-session-" + sessionID
	default:
		return "general-session-" + sessionID
	}
}
