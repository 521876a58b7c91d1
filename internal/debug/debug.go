// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package debug serves the health and debug endpoints.
package debug

import (
	"context"
	"net/http"

	"github.com/juju/loggo"
	"gopkg.in/errgo.v1"
	"gopkg.in/httprequest.v1"

	"github.com/release-engineering/waiverdb/internal/auth"
	"github.com/release-engineering/waiverdb/internal/debugstatus"
	"github.com/release-engineering/waiverdb/internal/identity"
	"github.com/release-engineering/waiverdb/params"
	"github.com/release-engineering/waiverdb/store"
	"github.com/release-engineering/waiverdb/version"
)

var logger = loggo.GetLogger("waiverdb.internal.debug")

var stdCheckers = []debugstatus.CheckerFunc{
	debugstatus.ServerStartTime,
}

// NewAPIHandler is an identity.NewAPIHandlerFunc.
func NewAPIHandler(hp identity.HandlerParams) ([]httprequest.Handler, error) {
	h := newDebugAPIHandler(hp)
	handlers := identity.ReqServer.Handlers(h.handler)
	handlers = append(handlers, identity.ReqServer.Handlers(h.healthHandler)...)
	return handlers, nil
}

func newDebugAPIHandler(hp identity.HandlerParams) *debugAPIHandler {
	checkerFuncs := append([]debugstatus.CheckerFunc{}, stdCheckers...)
	checkerFuncs = append(checkerFuncs, debugstatus.StorePing(hp.Store))
	checkerFuncs = append(checkerFuncs, hp.DebugStatusCheckerFuncs...)
	h := &debugAPIHandler{
		store:         hp.Store,
		authenticator: hp.Authenticator,
		superusers:    hp.Superusers,
	}
	h.hnd = debugstatus.Handler{
		Check: func(ctx context.Context) map[string]debugstatus.CheckResult {
			return debugstatus.Check(ctx, checkerFuncs...)
		},
		Version: debugstatus.Version(version.VersionInfo),
	}
	if h.authenticator != nil {
		h.hnd.CheckTraceAllowed = func(r *http.Request) (bool, error) {
			return false, h.checkSuperuser(r)
		}
	}
	return h
}

type debugAPIHandler struct {
	store         store.Store
	authenticator *auth.Authenticator
	superusers    []string
	hnd           debugstatus.Handler
}

// checkSuperuser checks that the request was made by one of the
// configured superusers.
func (h *debugAPIHandler) checkSuperuser(r *http.Request) error {
	user, err := h.authenticator.Authenticate(r.Context(), r)
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	for _, u := range h.superusers {
		if u == user {
			return nil
		}
	}
	return errgo.WithCausef(nil, params.ErrForbidden, "user %s is not a superuser", user)
}

func (h *debugAPIHandler) handler(p httprequest.Params) (*debugstatus.Handler, context.Context, error) {
	return &h.hnd, p.Context, nil
}

func (h *debugAPIHandler) healthHandler(p httprequest.Params) (*healthHandler, context.Context, error) {
	return &healthHandler{h.store}, p.Context, nil
}

type healthHandler struct {
	store store.Store
}

// HealthcheckRequest describes the /healthcheck endpoint.
type HealthcheckRequest struct {
	httprequest.Route `httprequest:"GET /healthcheck"`
}

// Healthcheck reports whether the server can serve requests. The
// response is plain text.
func (h *healthHandler) Healthcheck(p httprequest.Params, _ *HealthcheckRequest) error {
	if err := h.store.Ping(p.Context); err != nil {
		logger.Errorf("health check failed: %s", err)
		return errgo.WithCausef(nil, params.ErrServiceUnavailable, "Unable to communicate with database")
	}
	p.Response.Header().Set("Content-Type", "text/plain")
	p.Response.WriteHeader(http.StatusOK)
	_, err := p.Response.Write([]byte("Health check OK"))
	return errgo.Mask(err)
}
