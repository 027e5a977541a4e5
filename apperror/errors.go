package apperror

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInternalServer    = errors.New("internal server error")

	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrTokenSignature   = errors.New("could not sign token")

	ErrUnknownProvider  = errors.New("unknown provider")
	ErrInvalidState     = errors.New("invalid state")
	ErrDuplicateCode    = errors.New("duplicate_code")
	ErrProviderExchange = errors.New("provider exchange failed")
	ErrProviderUser     = errors.New("could not fetch provider user")
	ErrEmailUnverified  = errors.New("email not verified")
)
