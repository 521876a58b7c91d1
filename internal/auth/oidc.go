// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"gopkg.in/errgo.v1"
)

// DefaultUsernameField is the ID token claim holding the username when
// none is configured.
const DefaultUsernameField = "preferred_username"

// OIDCParams holds the parameters for an OpenID Connect
// authentication method.
type OIDCParams struct {
	// Issuer holds the URL of the OpenID Connect provider.
	Issuer string

	// ClientID holds the client ID that ID tokens must be issued
	// for.
	ClientID string

	// UsernameField holds the name of the claim that holds the
	// username. If it is empty DefaultUsernameField is used.
	UsernameField string
}

// OIDC authenticates users by an OpenID Connect ID token given as a
// bearer token.
type OIDC struct {
	usernameField string
	verify        func(ctx context.Context, rawToken string) (map[string]interface{}, error)
}

// NewOIDC returns a new OIDC method. It performs discovery on the
// issuer.
func NewOIDC(ctx context.Context, p OIDCParams) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, p.Issuer)
	if err != nil {
		return nil, errgo.Notef(err, "cannot discover OpenID Connect provider %q", p.Issuer)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: p.ClientID})
	return newOIDC(p.UsernameField, func(ctx context.Context, rawToken string) (map[string]interface{}, error) {
		tok, err := verifier.Verify(ctx, rawToken)
		if err != nil {
			return nil, errgo.Mask(err)
		}
		var claims map[string]interface{}
		if err := tok.Claims(&claims); err != nil {
			return nil, errgo.Mask(err)
		}
		return claims, nil
	}), nil
}

func newOIDC(usernameField string, verify func(context.Context, string) (map[string]interface{}, error)) *OIDC {
	if usernameField == "" {
		usernameField = DefaultUsernameField
	}
	return &OIDC{
		usernameField: usernameField,
		verify:        verify,
	}
}

// Name implements Method.Name.
func (*OIDC) Name() string {
	return MethodOIDC
}

// Authenticate implements Method.Authenticate.
func (m *OIDC) Authenticate(ctx context.Context, req *http.Request) (string, error) {
	const prefix = "Bearer "
	hdr := req.Header.Get("Authorization")
	if !strings.HasPrefix(hdr, prefix) {
		return "", &ChallengeError{
			Challenge: "Bearer",
			Message:   "No 'Authorization: Bearer' header found.",
		}
	}
	claims, err := m.verify(ctx, strings.TrimSpace(hdr[len(prefix):]))
	if err != nil {
		logger.Infof("invalid ID token: %s", err)
		return "", unauthorizedf("Invalid token")
	}
	username, ok := claims[m.usernameField].(string)
	if !ok || username == "" {
		logger.Errorf("user info field %q is unavailable", m.usernameField)
		return "", unauthorizedf("Failed to retrieve username")
	}
	return username, nil
}
