package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the subset of the ERP access token this service reads.
// Several ERP deployments put the user id under different claims.
type TokenClaims struct {
	UserID string `json:"user_id,omitempty"`
	ID     string `json:"id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Owner returns the most specific user identifier in the claims.
func (c *TokenClaims) Owner() string {
	switch {
	case c == nil:
		return ""
	case c.UserID != "":
		return c.UserID
	case c.ID != "":
		return c.ID
	default:
		return c.Subject
	}
}
