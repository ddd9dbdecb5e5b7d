package enums

// UserRole is carried in access tokens and checked by RequireRole.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = []UserRole{UserRoleCustomer, UserRoleAdmin}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool {
	_, err := ParseUserRole(string(r))
	return err == nil
}

func ParseUserRole(value string) (UserRole, error) {
	return parse("user role", userRoles, value)
}
