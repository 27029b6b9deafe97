package domain

import "time"

// Role is an operator's permission level on the management API
type Role string

const (
	RoleAdmin  Role = "admin"  // may provision, authorize, refresh and deactivate
	RoleViewer Role = "viewer" // may list and read status
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleViewer
}

// OperatorClaims is the payload of an operator bearer token
type OperatorClaims struct {
	Subject   string `json:"sub"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// IsExpired checks if the claims have expired at now
func (c *OperatorClaims) IsExpired(now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}

// AuthContext contains the authenticated operator for request context
type AuthContext struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
}

// IsAdmin checks if the operator is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}
