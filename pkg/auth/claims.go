package auth

import "github.com/golang-jwt/jwt/v5"

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Username  string
	SessionID string
}

// AccessTokenClaims represents the typed JWT issued to reviewers. The
// registered jti carries the review session id.
type AccessTokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionID returns the review session bound to the token.
func (c *AccessTokenClaims) SessionID() string {
	return c.ID
}
