package types

// LinkedinUser is the OpenID Connect userinfo payload.
type LinkedinUser struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}
