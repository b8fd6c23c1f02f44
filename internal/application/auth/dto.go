package auth

// LoginInput is the body of the login call
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned by the login call. The session token is
// TokenHead followed by Token.
type LoginResult struct {
	Token     string `json:"token"`
	TokenHead string `json:"tokenHead"`
}

// SessionToken returns the value stored in the session and sent as the
// Authorization header
func (r LoginResult) SessionToken() string {
	return r.TokenHead + r.Token
}
