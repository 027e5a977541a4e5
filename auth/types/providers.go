package types

import "fmt"

type ProviderName int

const (
	GithubProvider ProviderName = iota
	GoogleProvider
	FacebookProvider
	LinkedinProvider
)

var Providers = map[ProviderName]string{
	GithubProvider:   "github",
	GoogleProvider:   "google",
	FacebookProvider: "facebook",
	LinkedinProvider: "linkedin",
}

func (prov ProviderName) String() string {
	return Providers[prov]
}

// ParseProvider maps a provider's wire name back to its ProviderName.
func ParseProvider(name string) (ProviderName, error) {
	for p, n := range Providers {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown provider %q", name)
}

// ProviderNames lists every supported provider in declaration order.
func ProviderNames() []string {
	names := make([]string, 0, len(Providers))
	for p := GithubProvider; p <= LinkedinProvider; p++ {
		names = append(names, p.String())
	}
	return names
}
