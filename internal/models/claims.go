package models

import "github.com/golang-jwt/jwt/v5"

// Application permissions
const (
	// Settlement permissions
	PermissionSettlementRead  = "settlement:read"
	PermissionSettlementWrite = "settlement:write"

	// Seller onboarding permissions
	PermissionSellerRead  = "seller:read"
	PermissionSellerWrite = "seller:write"

	// Platform balance permission
	PermissionBalanceRead = "balance:read"
)

type UserClaims struct {
	jwt.RegisteredClaims
	UserID      uint     `json:"user_id"`
	StoreID     uint     `json:"store_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
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
