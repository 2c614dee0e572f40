package shared

// Role is the membership role of an actor within an organization.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above other. The rank order is
// only a coarse hierarchy; the authz matrix is authoritative per action.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}
