// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package auth

var (
	NewOIDCWithVerifier = newOIDC
	CommonName          = commonName
)
