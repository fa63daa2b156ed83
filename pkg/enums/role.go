package enums

// Role is the caller's role claim on the access token.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleDeveloper, RoleAdmin:
		return true
	}
	return false
}
