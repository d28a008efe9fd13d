package models

// Role defines the role model based on the 'roles' table. Users relate to
// roles many-to-many through 'user_roles'.
type Role struct {
	ID       int64  `json:"id" db:"id"`
	RoleName string `json:"roleName" db:"role_name" example:"Participant"`
}

// Role names known to the application.
const (
	RoleParticipant    = "Participant"
	RoleAuthor         = "Author"
	RoleOrganizer      = "Organizer"
	RoleAdmin          = "Admin"
	RolePanelEvaluator = "PanelEvaluator"
)
