package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/auth"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
	"github.com/Yulian302/lfusys-services-handshake/config"
)

const httpTimeout = 10 * time.Second

type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	GetOAuthUser(ctx context.Context, token *oauth2.Token) (types.OAuthUser, error)
}

// userFetcher maps a provider's userinfo endpoint onto an OAuthUser.
type userFetcher func(ctx context.Context, c *auth.Client, endpoint, token string) (types.OAuthUser, error)

type oauth2Provider struct {
	name        string
	cfg         *oauth2.Config
	userInfoURL string
	client      *auth.Client
	fetch       userFetcher
}

type defaults struct {
	endpoint    oauth2.Endpoint
	userInfoURL string
	scopes      []string
}

func newProvider(name, redirectURI string, pc config.ProviderConfig, d defaults, fetch userFetcher) *oauth2Provider {
	endpoint := d.endpoint
	if pc.AuthURL != "" {
		endpoint.AuthURL = pc.AuthURL
	}
	if pc.TokenURL != "" {
		endpoint.TokenURL = pc.TokenURL
	}
	userInfoURL := d.userInfoURL
	if pc.UserInfoURL != "" {
		userInfoURL = pc.UserInfoURL
	}
	scopes := d.scopes
	if len(pc.Scopes) > 0 {
		scopes = pc.Scopes
	}

	return &oauth2Provider{
		name: name,
		cfg: &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
		},
		userInfoURL: userInfoURL,
		client:      auth.NewClient(httpTimeout),
		fetch:       fetch,
	}
}

func (p *oauth2Provider) Name() string {
	return p.name
}

func (p *oauth2Provider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

func (p *oauth2Provider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client.HTTP())

	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return nil, fmt.Errorf("%w: %s error: %s - %s", apperror.ErrProviderExchange, p.name, re.ErrorCode, re.ErrorDescription)
		}
		return nil, fmt.Errorf("%w: %w", apperror.ErrProviderExchange, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", apperror.ErrProviderExchange)
	}
	return tok, nil
}

func (p *oauth2Provider) GetOAuthUser(ctx context.Context, token *oauth2.Token) (types.OAuthUser, error) {
	user, err := p.fetch(ctx, p.client, p.userInfoURL, token.AccessToken)
	if err != nil {
		if errors.Is(err, apperror.ErrEmailUnverified) {
			return types.OAuthUser{}, err
		}
		return types.OAuthUser{}, fmt.Errorf("%w: %w", apperror.ErrProviderUser, err)
	}
	user.Provider = p.name
	return user, nil
}
