// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package identity

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/juju/loggo"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/errgo.v1"
	"gopkg.in/httprequest.v1"

	"github.com/release-engineering/waiverdb/internal/auth"
	"github.com/release-engineering/waiverdb/internal/authz"
	"github.com/release-engineering/waiverdb/internal/debugstatus"
	"github.com/release-engineering/waiverdb/internal/events"
	"github.com/release-engineering/waiverdb/internal/monitoring"
	"github.com/release-engineering/waiverdb/internal/resultsdb"
	"github.com/release-engineering/waiverdb/params"
	"github.com/release-engineering/waiverdb/permission"
	"github.com/release-engineering/waiverdb/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var logger = loggo.GetLogger("waiverdb.internal.identity")

// NewAPIHandlerFunc is a function that returns set of httprequest
// handlers that uses the given server params.
type NewAPIHandlerFunc func(HandlerParams) ([]httprequest.Handler, error)

// New returns a handler that serves the given API versions. The key of
// the versions map is the version name.
func New(sp ServerParams, versions map[string]NewAPIHandlerFunc) (*Server, error) {
	if len(versions) == 0 {
		return nil, errgo.Newf("waiverdb server must serve at least one version of the API")
	}
	if sp.Store == nil {
		return nil, errgo.Newf("no store configured")
	}
	if sp.Authenticator == nil {
		sp.Authenticator = auth.New()
	}
	if sp.DefaultPageSize <= 0 {
		sp.DefaultPageSize = defaultPageSize
	}
	if sp.MaxPageSize <= 0 {
		sp.MaxPageSize = maxPageSize
	}
	if sp.DefaultPageSize > sp.MaxPageSize {
		sp.DefaultPageSize = sp.MaxPageSize
	}

	srv := &Server{
		router:         httprouter.New(),
		corsOrigins:    sp.CORSOrigins,
		storeCollector: monitoring.StoreCollector{Store: sp.Store},
	}
	srv.router.RedirectTrailingSlash = false
	srv.router.RedirectFixedPath = false
	srv.router.NotFound = http.HandlerFunc(notFound)
	srv.router.MethodNotAllowed = http.HandlerFunc(srv.methodNotAllowed)

	srv.router.Handle("OPTIONS", "/*path", srv.options)
	srv.router.Handler("GET", "/metrics", promhttp.Handler())
	for name, newAPI := range versions {
		handlers, err := newAPI(HandlerParams{
			ServerParams: sp,
		})
		if err != nil {
			return nil, errgo.Notef(err, "cannot create API %s", name)
		}
		for _, h := range handlers {
			srv.router.Handle(h.Method, h.Path, h.Handle)
		}
	}
	if err := prometheus.Register(srv.storeCollector); err != nil {
		logger.Warningf("cannot register store collector: %s", err)
	}
	return srv, nil
}

// Server serves the waiverdb endpoints.
type Server struct {
	router         *httprouter.Router
	corsOrigins    []string
	storeCollector monitoring.StoreCollector
}

// ServeHTTP implements http.Handler.
func (srv *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if v := recover(); v != nil {
			logger.Errorf("PANIC!: %v\n%s", v, debug.Stack())
			httprequest.WriteJSON(w, http.StatusInternalServerError, params.Error{
				Code:    "panic",
				Message: fmt.Sprintf("%v", v),
			})
		}
	}()
	srv.setCORSHeaders(w.Header(), req)
	srv.router.ServeHTTP(w, req)
}

// setCORSHeaders allows cross-origin requests from the configured
// origins.
func (srv *Server) setCORSHeaders(h http.Header, req *http.Request) {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := ""
	for _, o := range srv.corsOrigins {
		if o == "*" {
			allowed = "*"
			break
		}
		if o == origin {
			allowed = origin
		}
	}
	if allowed == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", allowed)
	h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Max-Age", "600")
	h.Add("Vary", "Origin")
}

// Close closes any resources held by this Handler.
func (srv *Server) Close() {
	logger.Debugf("Closing Server")
	prometheus.Unregister(srv.storeCollector)
}

// ServerParams contains configuration parameters for a server.
type ServerParams struct {
	// Store holds the waiver store.
	Store store.Store

	// Authenticator is used to find the user making a request. If
	// it is nil, no requests can be authenticated.
	Authenticator *auth.Authenticator

	// Permissions holds the compiled permission rules. When it is
	// empty any authenticated user may waive any test case.
	Permissions []permission.Rule

	// PermissionMapping holds the deprecated permission mapping as
	// configured. It is only used for reporting the configuration.
	PermissionMapping permission.Mapping

	// Superusers holds the users that may create waivers on behalf
	// of other users.
	Superusers []string

	// Directory, if not nil, is used to find the groups a user is a
	// member of.
	Directory authz.Directory

	// ResultsDB, if not nil, is used to look up results for waivers
	// created by result id.
	ResultsDB *resultsdb.Client

	// Events, if not nil, is notified of every new waiver.
	Events *events.Dispatcher

	// CORSOrigins holds the origins allowed to make cross-origin
	// requests. The origin "*" allows all origins.
	CORSOrigins []string

	// DefaultPageSize and MaxPageSize hold the default and maximum
	// number of waivers on a page of a listing.
	DefaultPageSize int
	MaxPageSize     int

	// DebugStatusCheckerFuncs contains functions that will be
	// executed as part of a /debug/status check.
	DebugStatusCheckerFuncs []debugstatus.CheckerFunc
}

// HandlerParams holds the parameters given to the API handler
// constructors.
type HandlerParams struct {
	ServerParams
}

// notFound is the handler that is called when a handler cannot be found
// for the requested endpoint.
func notFound(w http.ResponseWriter, req *http.Request) {
	WriteError(context.TODO(), w, errgo.WithCausef(nil, params.ErrNotFound, "not found: %s", req.URL.Path))
}

// methodNotAllowed is the handler that is called when a handler cannot
// be found for the requested endpoint with the request method, but
// there is a handler avaiable using a different method.
func (srv *Server) methodNotAllowed(w http.ResponseWriter, req *http.Request) {
	// Check that the match method is not OPTIONS
	for _, method := range []string{"GET", "POST", "PUT", "DELETE", "HEAD", "PATCH"} {
		if method == req.Method {
			continue
		}
		if h, _, _ := srv.router.Lookup(method, req.URL.Path); h != nil {
			WriteError(context.TODO(), w, errgo.WithCausef(nil, params.ErrMethodNotAllowed, "%s not allowed for %s", req.Method, req.URL.Path))
			return
		}
	}
	notFound(w, req)
}

// options handles every OPTIONS request and always succeeds.
func (srv *Server) options(http.ResponseWriter, *http.Request, httprouter.Params) {}
