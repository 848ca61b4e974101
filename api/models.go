package api

import "time"

// LoginRequest carries the credentials for POST /auth/login.
type LoginRequest struct {
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshRequest carries the refresh token for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// MeResponse describes the authenticated identity.
type MeResponse struct {
	ID           string   `json:"id"`
	EmailAddress string   `json:"email_address"`
	Roles        []string `json:"roles"`
	SessionID    string   `json:"session_id"`
}

// SessionInfo is the client-visible view of a session. The refresh token
// is secret-bearing and never serialized.
type SessionInfo struct {
	ID              string    `json:"id"`
	IPAddress       string    `json:"ip_address"`
	UserAgent       string    `json:"user_agent"`
	RefreshCount    uint64    `json:"refresh_count"`
	LastRefreshedAt time.Time `json:"last_refreshed_at,omitzero"`
	Revoked         bool      `json:"revoked"`
	CreatedAt       time.Time `json:"created_at"`
	Current         bool      `json:"current,omitempty"`
}

// ForgotPasswordRequest carries the address for POST /password/forgot.
type ForgotPasswordRequest struct {
	EmailAddress string `json:"email_address"`
}

// ResetPasswordRequest carries the reset proof for PUT /password/reset.
type ResetPasswordRequest struct {
	EmailAddress string `json:"email_address"`
	ResetCode    string `json:"reset_code"`
	NewPassword  string `json:"new_password"`
}
