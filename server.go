// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package waiverdb serves the waiver database HTTP API.
package waiverdb

import (
	"net/http"
	"sort"

	"gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/internal/debug"
	"github.com/release-engineering/waiverdb/internal/identity"
	"github.com/release-engineering/waiverdb/internal/v1"
)

// Versions of the API that can be served.
const (
	Debug = "debug"
	V1    = "v1"
)

var versions = map[string]identity.NewAPIHandlerFunc{
	Debug: debug.NewAPIHandler,
	V1:    v1.NewAPIHandler,
}

// Versions returns all known API version strings in alphabetical order.
func Versions() []string {
	vs := make([]string, 0, len(versions))
	for v := range versions {
		vs = append(vs, v)
	}
	sort.Strings(vs)
	return vs
}

// ServerParams contains configuration parameters for a server. See
// identity.ServerParams for a description of the fields.
type ServerParams identity.ServerParams

// NewServer returns a new handler that handles waiver requests and
// stores its data in the configured store. The handler will serve the
// specified versions of the API.
func NewServer(params ServerParams, serveVersions ...string) (HandlerCloser, error) {
	newAPIs := make(map[string]identity.NewAPIHandlerFunc)
	for _, vers := range serveVersions {
		newAPI := versions[vers]
		if newAPI == nil {
			return nil, errgo.Newf("unknown version %q", vers)
		}
		newAPIs[vers] = newAPI
	}
	srv, err := identity.New(identity.ServerParams(params), newAPIs)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	return srv, nil
}

// HandlerCloser is an http.Handler that holds resources which must be
// released with Close.
type HandlerCloser interface {
	http.Handler
	Close()
}
