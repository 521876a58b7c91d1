// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package auth

import (
	"context"
	"net/http"
	"strings"
)

// Headers set by a TLS terminating proxy.
const (
	HeaderSSLClientVerify = "SSL_CLIENT_VERIFY"
	HeaderSSLClientDN     = "SSL_CLIENT_S_DN"
)

// SSL authenticates users by their TLS client certificate. The
// username is the common name of the certificate subject.
type SSL struct {
	// TrustProxyHeaders allows the client certificate details to
	// be taken from headers set by a proxy that has already
	// verified the certificate. It must only be set when all
	// requests pass through such a proxy.
	TrustProxyHeaders bool
}

// Name implements Method.Name.
func (SSL) Name() string {
	return MethodSSL
}

// Authenticate implements Method.Authenticate.
func (m SSL) Authenticate(_ context.Context, req *http.Request) (string, error) {
	if req.TLS != nil && len(req.TLS.VerifiedChains) > 0 && len(req.TLS.VerifiedChains[0]) > 0 {
		cn := req.TLS.VerifiedChains[0][0].Subject.CommonName
		if cn == "" {
			return "", unauthorizedf("Unable to get user information (CN) from the client certificate")
		}
		return cn, nil
	}
	if !m.TrustProxyHeaders {
		return "", unauthorizedf("Cannot verify client: no client certificate")
	}
	if verify := req.Header.Get(HeaderSSLClientVerify); verify != "SUCCESS" {
		return "", unauthorizedf("Cannot verify client: %s", verify)
	}
	dn := req.Header.Get(HeaderSSLClientDN)
	if dn == "" {
		return "", unauthorizedf("Unable to get user information (DN) from the client certificate")
	}
	return commonName(dn), nil
}

// commonName returns the CN attribute of the given distinguished
// name, which may be in either RFC 4514 ("CN=bob,O=Example") or
// OpenSSL ("/O=Example/CN=bob") form. If there is no CN attribute the
// whole name is returned.
func commonName(dn string) string {
	sep := ","
	if strings.HasPrefix(dn, "/") {
		sep = "/"
	}
	for _, rdn := range strings.Split(dn, sep) {
		rdn = strings.TrimSpace(rdn)
		if len(rdn) > 3 && strings.EqualFold(rdn[:3], "cn=") {
			return rdn[3:]
		}
	}
	return dn
}
