// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package auth

import (
	"context"
	"net/http"
)

// Dummy accepts any username given with HTTP basic authentication and
// ignores the password. It must only be used for testing.
type Dummy struct{}

// Name implements Method.Name.
func (Dummy) Name() string {
	return MethodDummy
}

// Authenticate implements Method.Authenticate.
func (Dummy) Authenticate(_ context.Context, req *http.Request) (string, error) {
	username, _, ok := req.BasicAuth()
	if !ok || username == "" {
		return "", &ChallengeError{
			Challenge: `Basic realm="dummy"`,
			Message:   "Unauthorized",
		}
	}
	return username, nil
}
