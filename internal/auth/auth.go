// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package auth determines which user sent an HTTP request.
package auth

import (
	"context"
	"net/http"

	"github.com/juju/loggo"
	"gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/params"
)

var logger = loggo.GetLogger("waiverdb.internal.auth")

// The names of the supported authentication methods.
const (
	MethodOIDC  = "oidc"
	MethodSSL   = "ssl"
	MethodDummy = "dummy"
)

// A Method is a way of authenticating a request.
type Method interface {
	// Name returns the name of the method.
	Name() string

	// Authenticate returns the username of the user that sent the
	// request. If the user cannot be authenticated the returned
	// error has a cause with an ErrorCode of
	// params.ErrUnauthorized.
	Authenticate(ctx context.Context, req *http.Request) (string, error)
}

// An Authenticator authenticates requests using a sequence of methods.
type Authenticator struct {
	methods []Method
}

// New returns an Authenticator that tries each of the given methods in
// order.
func New(methods ...Method) *Authenticator {
	return &Authenticator{
		methods: methods,
	}
}

// Authenticate returns the username of the user that sent the request
// as determined by the first method that succeeds. If no method
// succeeds the error from the first method is returned.
func (a *Authenticator) Authenticate(ctx context.Context, req *http.Request) (string, error) {
	if len(a.methods) == 0 {
		return "", errgo.WithCausef(nil, params.ErrUnauthorized, "Authenticated user required. No methods specified.")
	}
	var firstErr error
	for _, m := range a.methods {
		username, err := m.Authenticate(ctx, req)
		if err == nil {
			logger.Debugf("authenticated %q using %s", username, m.Name())
			return username, nil
		}
		logger.Debugf("%s authentication failed: %s", m.Name(), err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", errgo.Mask(firstErr, errgo.Any)
}

// Methods returns the names of the configured methods in order.
func (a *Authenticator) Methods() []string {
	names := make([]string, len(a.methods))
	for i, m := range a.methods {
		names[i] = m.Name()
	}
	return names
}

// ChallengeError is an authentication failure that asks the client to
// authenticate with the given challenge.
type ChallengeError struct {
	// Challenge holds the value of the WWW-Authenticate header.
	Challenge string

	// Message holds the error message.
	Message string
}

// Error implements error.
func (e *ChallengeError) Error() string {
	return e.Message
}

// ErrorCode returns params.ErrUnauthorized.
func (e *ChallengeError) ErrorCode() params.ErrorCode {
	return params.ErrUnauthorized
}

// SetHeader implements httprequest.HeaderSetter by adding the
// challenge to the response.
func (e *ChallengeError) SetHeader(h http.Header) {
	h.Set("WWW-Authenticate", e.Challenge)
}

func unauthorizedf(f string, a ...interface{}) error {
	err := errgo.WithCausef(nil, params.ErrUnauthorized, f, a...)
	err.(*errgo.Err).SetLocation(1)
	return err
}
