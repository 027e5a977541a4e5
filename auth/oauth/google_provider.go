package oauth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2/endpoints"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/auth"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
	"github.com/Yulian302/lfusys-services-handshake/config"
)

func NewGoogleProvider(redirectURI string, cfg config.ProviderConfig) Provider {
	return newProvider(types.GoogleProvider.String(), redirectURI, cfg, defaults{
		endpoint:    endpoints.Google,
		userInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		scopes:      []string{"openid", "email", "profile"},
	}, fetchGoogleUser)
}

func fetchGoogleUser(ctx context.Context, c *auth.Client, endpoint, token string) (types.OAuthUser, error) {
	var gUser types.GoogleUser
	if err := c.GetJSONWithToken(ctx, endpoint, token, &gUser); err != nil {
		return types.OAuthUser{}, err
	}

	if gUser.ID == "" {
		return types.OAuthUser{}, errors.New("google response missing user id")
	}
	if gUser.Email == "" {
		return types.OAuthUser{}, errors.New("google response missing email")
	}
	if !gUser.EmailVerified {
		return types.OAuthUser{}, fmt.Errorf("%w: %s", apperror.ErrEmailUnverified, gUser.Email)
	}

	return types.OAuthUser{
		Name:          gUser.Name,
		Email:         gUser.Email,
		EmailVerified: true,
		ProviderID:    gUser.ID,
		AvatarURL:     gUser.Picture,
		Username:      gUser.Name,
	}, nil
}
