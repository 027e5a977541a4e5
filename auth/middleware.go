package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
)

const EmailKey = "email"

// ParseToken verifies an HS256 token signed with secret and returns its
// claims.
func ParseToken(token, secret string) (*types.JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &types.JWTClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return parsed.Claims.(*types.JWTClaims), nil
}

func JWTMiddleware(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(types.AccessCookie)
		if err != nil || token == "" {
			apperror.UnauthorizedResponse(ctx, "unauthorized")
			return
		}

		claims, err := ParseToken(token, secretKey)
		if err != nil {
			refresh, _ := ctx.Cookie(types.RefreshCookie)
			if refresh != "" {
				apperror.UnauthorizedResponse(ctx, "token_expired")
			} else {
				apperror.UnauthorizedResponse(ctx, "invalid_token")
			}
			return
		}

		if claims.Type != types.AccessTokenType {
			apperror.UnauthorizedResponse(ctx, "invalid token type")
			return
		}

		ctx.Set(EmailKey, claims.Subject)
		ctx.Next()
	}
}
