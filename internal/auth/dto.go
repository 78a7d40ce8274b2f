package auth

import "time"

// LoginRequest captures the reviewer credentials sent to the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required,notblank,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse carries the bearer token for the new review session.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	SessionID   string    `json:"session_id"`
	Username    string    `json:"username"`
	ExpiresAt   time.Time `json:"expires_at"`
}
