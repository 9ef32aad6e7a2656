package access

import "github.com/mikepea/budgetshare/pkg/budgetshare/models"

type transition struct {
	from, to models.Role
}

// Role changes a group admin may apply to another member. Any pair that
// involves admin is absent and therefore rejected.
var roleTransitions = map[transition]bool{
	{models.RoleReadOnly, models.RoleEdit}:     true,
	{models.RoleEdit, models.RoleReadOnly}:     true,
	{models.RoleReadOnly, models.RoleReadOnly}: true,
	{models.RoleEdit, models.RoleEdit}:         true,
}

// CanTransition reports whether a membership may move from one role to another.
func CanTransition(from, to models.Role) bool {
	return roleTransitions[transition{from, to}]
}
