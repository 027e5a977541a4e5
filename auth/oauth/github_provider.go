package oauth

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/oauth2/endpoints"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/auth"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
	"github.com/Yulian302/lfusys-services-handshake/config"
)

func NewGithubProvider(redirectURI string, cfg config.ProviderConfig) Provider {
	return newProvider(types.GithubProvider.String(), redirectURI, cfg, defaults{
		endpoint:    endpoints.GitHub,
		userInfoURL: "https://api.github.com/user",
		scopes:      []string{"read:user", "user:email"},
	}, fetchGithubUser)
}

func fetchGithubUser(ctx context.Context, c *auth.Client, endpoint, token string) (types.OAuthUser, error) {
	var ghUser types.GithubUser
	if err := c.GetJSONWithToken(ctx, endpoint, token, &ghUser); err != nil {
		return types.OAuthUser{}, err
	}

	user := types.OAuthUser{
		Name:          ghUser.Name,
		Email:         ghUser.Email,
		EmailVerified: ghUser.Email != "",
		ProviderID:    strconv.FormatInt(ghUser.ID, 10),
		AvatarURL:     ghUser.AvatarURL,
		Username:      ghUser.Login,
	}
	if user.Name == "" {
		user.Name = ghUser.Login
	}
	if user.Email != "" {
		return user, nil
	}

	// private emails are only listed on the emails endpoint
	var emails []types.GithubEmail
	if err := c.GetJSONWithToken(ctx, endpoint+"/emails", token, &emails); err != nil {
		return types.OAuthUser{}, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			user.Email = e.Email
			break
		}
	}
	if user.Email == "" {
		for _, e := range emails {
			if e.Verified {
				user.Email = e.Email
				break
			}
		}
	}
	if user.Email == "" {
		return types.OAuthUser{}, fmt.Errorf("%w: no verified github email", apperror.ErrEmailUnverified)
	}
	user.EmailVerified = true
	return user, nil
}
