// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package v1 implements the /api/v1.0 endpoints.
package v1

import (
	"context"

	"github.com/juju/loggo"
	"golang.org/x/net/trace"
	"gopkg.in/httprequest.v1"

	"github.com/release-engineering/waiverdb/internal/identity"
	"github.com/release-engineering/waiverdb/internal/monitoring"
)

var logger = loggo.GetLogger("waiverdb.internal.v1")

const traceFamily = "waiverdb.internal.v1"

// NewAPIHandler is an identity.NewAPIHandlerFunc.
func NewAPIHandler(hp identity.HandlerParams) ([]httprequest.Handler, error) {
	return identity.ReqServer.Handlers(New(hp).apiHandler), nil
}

// Handler handles the /api/v1.0 requests.
type Handler struct {
	params identity.ServerParams
}

// New returns a new instance of the v1 API handler.
func New(hp identity.HandlerParams) *Handler {
	return &Handler{
		params: hp.ServerParams,
	}
}

// apiHandler creates a per-request handler. This method has the form
// required by
// https://godoc.org/gopkg.in/httprequest.v1#ErrorMapper.Handlers and
// so can be used to automatically derive the list of endpoints to add to
// the router.
func (h *Handler) apiHandler(p httprequest.Params, arg interface{}) (*handler, context.Context, error) {
	t := trace.New(traceFamily, p.PathPattern)
	return &handler{
		h:      h,
		monReq: monitoring.NewRequest(&p),
		trace:  t,
	}, trace.NewContext(p.Context, t), nil
}

type handler struct {
	h      *Handler
	monReq monitoring.Request
	trace  trace.Trace
}

// Close implements io.Closer. httprequest will automatically call this
// once a request is complete.
func (h *handler) Close() error {
	h.monReq.ObserveMetric()
	h.trace.Finish()
	h.trace = nil
	return nil
}

func (h *handler) isSuperuser(user string) bool {
	for _, u := range h.h.params.Superusers {
		if u == user {
			return true
		}
	}
	return false
}
