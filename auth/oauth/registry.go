package oauth

import (
	"fmt"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
	"github.com/Yulian302/lfusys-services-handshake/config"
)

type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// RegistryFromConfig registers every provider that has client credentials.
func RegistryFromConfig(cfg config.OAuthConfig) *Registry {
	var providers []Provider
	if cfg.Github.Enabled() {
		providers = append(providers, NewGithubProvider(cfg.RedirectURI, cfg.Github))
	}
	if cfg.Google.Enabled() {
		providers = append(providers, NewGoogleProvider(cfg.RedirectURI, cfg.Google))
	}
	if cfg.Facebook.Enabled() {
		providers = append(providers, NewFacebookProvider(cfg.RedirectURI, cfg.Facebook))
	}
	if cfg.Linkedin.Enabled() {
		providers = append(providers, NewLinkedinProvider(cfg.RedirectURI, cfg.Linkedin))
	}
	return NewRegistry(providers...)
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperror.ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists registered providers in a stable order.
func (r *Registry) Names() []string {
	var names []string
	for _, n := range types.ProviderNames() {
		if _, ok := r.providers[n]; ok {
			names = append(names, n)
		}
	}
	return names
}
