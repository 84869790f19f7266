package enums

import "fmt"

// AccountRole gates access to the admin back office.
type AccountRole string

const (
	AccountRoleCustomer AccountRole = "customer"
	AccountRoleAdmin    AccountRole = "admin"
)

// String implements fmt.Stringer.
func (r AccountRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known AccountRole.
func (r AccountRole) IsValid() bool {
	return r == AccountRoleCustomer || r == AccountRoleAdmin
}

// ParseAccountRole converts raw input into an AccountRole.
func ParseAccountRole(value string) (AccountRole, error) {
	r := AccountRole(value)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid account role %q", value)
	}
	return r, nil
}
