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

func NewLinkedinProvider(redirectURI string, cfg config.ProviderConfig) Provider {
	return newProvider(types.LinkedinProvider.String(), redirectURI, cfg, defaults{
		endpoint:    endpoints.LinkedIn,
		userInfoURL: "https://api.linkedin.com/v2/userinfo",
		scopes:      []string{"openid", "profile", "email"},
	}, fetchLinkedinUser)
}

func fetchLinkedinUser(ctx context.Context, c *auth.Client, endpoint, token string) (types.OAuthUser, error) {
	var liUser types.LinkedinUser
	if err := c.GetJSONWithToken(ctx, endpoint, token, &liUser); err != nil {
		return types.OAuthUser{}, err
	}
	if liUser.Sub == "" {
		return types.OAuthUser{}, errors.New("linkedin response missing subject")
	}
	if liUser.Email == "" || !liUser.EmailVerified {
		return types.OAuthUser{}, fmt.Errorf("%w: linkedin email", apperror.ErrEmailUnverified)
	}

	return types.OAuthUser{
		Name:          liUser.Name,
		Email:         liUser.Email,
		EmailVerified: true,
		ProviderID:    liUser.Sub,
		AvatarURL:     liUser.Picture,
		Username:      liUser.Name,
	}, nil
}
