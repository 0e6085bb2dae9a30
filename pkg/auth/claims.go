package auth

import (
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims represents the JWT minted by the identity service.
type AccessTokenClaims struct {
	UserID string       `json:"user_id"`
	Roles  []enums.Role `json:"roles"`
	jwt.RegisteredClaims
}

// Subject returns the user id, falling back to the registered "sub" claim.
func (c *AccessTokenClaims) Subject() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// HasAnyRole reports whether the token grants at least one of roles.
func (c *AccessTokenClaims) HasAnyRole(roles ...enums.Role) bool {
	for _, held := range c.Roles {
		for _, wanted := range roles {
			if held == wanted {
				return true
			}
		}
	}
	return false
}
