package model

import "time"

// TokenPair is the result of a client-credentials exchange with the identity endpoint.
type TokenPair struct {
	AccessToken string
	JwtToken    string
	ExpiresIn   time.Duration
	IssuedAt    time.Time
}

// ValidAt reports whether the pair can still be used at now, keeping skew as a safety margin.
func (t TokenPair) ValidAt(now time.Time, skew time.Duration) bool {
	if t.AccessToken == "" || t.IssuedAt.IsZero() || t.ExpiresIn <= 0 {
		return false
	}
	return now.Sub(t.IssuedAt) < t.ExpiresIn-skew
}

// AuthenticateResponse wire format of POST /authenticate.
type AuthenticateResponse struct {
	AccessToken string `json:"access_token"`
	JwtToken    string `json:"jwt_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
}
