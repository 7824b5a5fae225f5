package enums

// TenantRole is the role claim carried by identity-provider tokens.
type TenantRole string

const (
	TenantRoleOwner  TenantRole = "owner"
	TenantRoleAdmin  TenantRole = "admin"
	TenantRoleViewer TenantRole = "viewer"
)

// String implements fmt.Stringer.
func (r TenantRole) String() string {
	return string(r)
}
