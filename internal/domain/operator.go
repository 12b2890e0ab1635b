package domain

// Role is the access level of an EOD operator.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Allows reports whether r grants at least the access of required.
func (r Role) Allows(required Role) bool {
	return r.Valid() && roleRank[r] >= roleRank[required]
}

// Operator is the authenticated principal that triggers jobs. Its ID is
// recorded as the user id of every job execution log.
type Operator struct {
	ID   string
	Role Role
}
