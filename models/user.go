package models

// UserRole is the role claim carried by the access token.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleOrganizer UserRole = "organizer"
	RoleReferee   UserRole = "referee"
)

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID int      `json:"user_id"`
	Role   UserRole `json:"role"`
}

func (a Actor) IsOrganizer() bool {
	return a.Role == RoleOrganizer || a.Role == RoleAdmin
}
