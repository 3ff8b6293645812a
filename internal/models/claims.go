package models

import "github.com/golang-jwt/jwt/v5"

// Application permissions
const (
	PermissionWalletRead  = "wallet:read"
	PermissionWalletWrite = "wallet:write"
	PermissionOrderRead   = "order:read"
	PermissionOrderWrite  = "order:write"
	PermissionAdmin       = "admin:write"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserClaims is the identity carried by a bearer token. The token is issued
// by the external identity provider; we only verify and read it.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID        string   `json:"user_id"`
	Email         string   `json:"email"`
	DisplayName   string   `json:"name,omitempty"`
	AvatarURL     string   `json:"picture,omitempty"`
	EmailVerified bool     `json:"email_verified"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions"`
}

// Identity projects the claims onto the identity used by the ledger.
func (c *UserClaims) Identity() Identity {
	return Identity{
		UserID:        c.UserID,
		Email:         c.Email,
		DisplayName:   c.DisplayName,
		AvatarRef:     c.AvatarURL,
		EmailVerified: c.EmailVerified,
	}
}

// HasPermission checks if the claims include a specific permission
func (c *UserClaims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermissionWalletRead,
			PermissionWalletWrite,
			PermissionOrderRead,
			PermissionOrderWrite,
			PermissionAdmin,
		}
	case RoleUser:
		return []string{
			PermissionWalletRead,
			PermissionWalletWrite,
			PermissionOrderRead,
			PermissionOrderWrite,
		}
	default:
		return []string{}
	}
}
