package enums

// IntegrationStatus tracks the lifecycle of a tenant's platform connection.
type IntegrationStatus string

const (
	// IntegrationStatusActive indicates the connection holds usable credentials.
	IntegrationStatusActive IntegrationStatus = "active"
	// IntegrationStatusNeedsReauth indicates the provider rejected the refresh token.
	IntegrationStatusNeedsReauth IntegrationStatus = "needs_reauth"
	// IntegrationStatusDisconnected indicates the tenant disconnected the platform.
	IntegrationStatusDisconnected IntegrationStatus = "disconnected"
)

// String implements fmt.Stringer.
func (s IntegrationStatus) String() string {
	return string(s)
}
