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

func NewFacebookProvider(redirectURI string, cfg config.ProviderConfig) Provider {
	return newProvider(types.FacebookProvider.String(), redirectURI, cfg, defaults{
		endpoint:    endpoints.Facebook,
		userInfoURL: "https://graph.facebook.com/me?fields=id,name,email,picture",
		scopes:      []string{"email", "public_profile"},
	}, fetchFacebookUser)
}

// Facebook only returns confirmed addresses, so any email is treated as
// verified.
func fetchFacebookUser(ctx context.Context, c *auth.Client, endpoint, token string) (types.OAuthUser, error) {
	var fbUser types.FacebookUser
	if err := c.GetJSONWithToken(ctx, endpoint, token, &fbUser); err != nil {
		return types.OAuthUser{}, err
	}
	if fbUser.ID == "" {
		return types.OAuthUser{}, errors.New("facebook response missing user id")
	}
	if fbUser.Email == "" {
		return types.OAuthUser{}, fmt.Errorf("%w: facebook account has no email", apperror.ErrEmailUnverified)
	}

	return types.OAuthUser{
		Name:          fbUser.Name,
		Email:         fbUser.Email,
		EmailVerified: true,
		ProviderID:    fbUser.ID,
		AvatarURL:     fbUser.Picture.Data.URL,
		Username:      fbUser.Name,
	}, nil
}
