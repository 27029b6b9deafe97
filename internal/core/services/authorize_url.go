package services

import (
	"strings"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/marketlink/internal/core/domain"
)

// BuildAuthorizationURL returns the provider consent URL. Scopes keep their
// order and are joined with the provider's separator; an empty list omits the
// scope parameter. The code_challenge pair is added only when codeChallenge
// is set. provider must already have any {shop} placeholder resolved.
func BuildAuthorizationURL(provider *domain.ProviderConfig, redirectURI string, scopes []string, state, codeChallenge string) string {
	cfg := oauth2.Config{
		ClientID:    provider.ClientID,
		RedirectURL: redirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: provider.AuthURL},
	}

	var opts []oauth2.AuthCodeOption
	if len(scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", strings.Join(scopes, provider.Separator())))
	}
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}

	return cfg.AuthCodeURL(state, opts...)
}
