// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package debugstatus_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/qthttptest"
	"github.com/julienschmidt/httprouter"
	"gopkg.in/httprequest.v1"

	"github.com/release-engineering/waiverdb/internal/debugstatus"
)

func makeCheckerFunc(key, name, value string, passed bool) debugstatus.CheckerFunc {
	return func(context.Context) (string, debugstatus.CheckResult) {
		time.Sleep(time.Microsecond)
		return key, debugstatus.CheckResult{
			Name:   name,
			Value:  value,
			Passed: passed,
		}
	}
}

func TestCheck(t *testing.T) {
	c := qt.New(t)
	results := debugstatus.Check(
		context.Background(),
		makeCheckerFunc("check1", "check1 name", "value1", true),
		makeCheckerFunc("check2", "check2 name", "value2", false),
		makeCheckerFunc("check3", "check3 name", "value3", true),
	)
	for key, r := range results {
		if r.Duration < time.Microsecond {
			c.Errorf("got %v want >1µs", r.Duration)
		}
		r.Duration = 0
		results[key] = r
	}

	c.Assert(results, qt.DeepEquals, map[string]debugstatus.CheckResult{
		"check1": {
			Name:   "check1 name",
			Value:  "value1",
			Passed: true,
		},
		"check2": {
			Name:   "check2 name",
			Value:  "value2",
			Passed: false,
		},
		"check3": {
			Name:   "check3 name",
			Value:  "value3",
			Passed: true,
		},
	})
}

func TestServerStartTime(t *testing.T) {
	c := qt.New(t)
	startTime := time.Now()
	c.Patch(&debugstatus.StartTime, startTime)
	key, result := debugstatus.ServerStartTime(context.Background())
	c.Assert(key, qt.Equals, "server_started")
	c.Assert(result, qt.DeepEquals, debugstatus.CheckResult{
		Name:   "Server started",
		Value:  startTime.String(),
		Passed: true,
	})
}

type pinger struct {
	err error
}

func (p pinger) Ping(context.Context) error {
	return p.err
}

var storePingTests = []struct {
	about        string
	err          error
	expectValue  string
	expectPassed bool
}{{
	about:        "store available",
	expectValue:  "Store available",
	expectPassed: true,
}, {
	about:       "store unavailable",
	err:         errors.New("bad wolf"),
	expectValue: "Cannot contact store: bad wolf",
}}

func TestStorePing(t *testing.T) {
	c := qt.New(t)
	for _, test := range storePingTests {
		c.Run(test.about, func(c *qt.C) {
			check := debugstatus.StorePing(pinger{test.err})
			key, result := check(context.Background())
			c.Assert(key, qt.Equals, "store_ping")
			c.Assert(result, qt.DeepEquals, debugstatus.CheckResult{
				Name:   "Waiver store",
				Value:  test.expectValue,
				Passed: test.expectPassed,
			})
		})
	}
}

func newHTTPHandler(h *debugstatus.Handler) http.Handler {
	srv := httprequest.Server{
		ErrorMapper: func(ctx context.Context, err error) (httpStatus int, errorBody interface{}) {
			return http.StatusInternalServerError, httprequest.RemoteError{
				Message: err.Error(),
			}
		},
	}
	handlers := srv.Handlers(func(p httprequest.Params) (*debugstatus.Handler, context.Context, error) {
		return h, p.Context, nil
	})
	r := httprouter.New()
	for _, h := range handlers {
		r.Handle(h.Method, h.Path, h.Handle)
	}
	return r
}

func TestServeDebugStatus(t *testing.T) {
	c := qt.New(t)
	httpHandler := newHTTPHandler(&debugstatus.Handler{
		Check: func(ctx context.Context) map[string]debugstatus.CheckResult {
			return debugstatus.Check(ctx, debugstatus.ServerStartTime)
		},
	})
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Handler: httpHandler,
		URL:     "/debug/status",
		ExpectBody: qthttptest.BodyAsserter(func(c *qt.C, body json.RawMessage) {
			var result map[string]debugstatus.CheckResult
			err := json.Unmarshal(body, &result)
			c.Assert(err, qt.IsNil)
			for k, v := range result {
				v.Duration = 0
				result[k] = v
			}
			c.Assert(result, qt.DeepEquals, map[string]debugstatus.CheckResult{
				"server_started": {
					Name:   "Server started",
					Value:  debugstatus.StartTime.String(),
					Passed: true,
				},
			})
		}),
	})
}

func TestServeDebugStatusWithNilCheck(t *testing.T) {
	c := qt.New(t)
	httpHandler := newHTTPHandler(&debugstatus.Handler{})
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Handler:    httpHandler,
		URL:        "/debug/status",
		ExpectBody: map[string]debugstatus.CheckResult{},
	})
}

func TestServeDebugInfo(t *testing.T) {
	c := qt.New(t)
	version := debugstatus.Version{
		GitCommit: "some-git-status",
		Version:   "a-version",
	}
	httpHandler := newHTTPHandler(&debugstatus.Handler{
		Version: version,
	})
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Handler:      httpHandler,
		URL:          "/debug/info",
		ExpectStatus: http.StatusOK,
		ExpectBody:   version,
	})
}

var debugTracePaths = []string{
	"/debug/events",
	"/debug/requests",
}

func TestServeTraceEvents(t *testing.T) {
	c := qt.New(t)
	httpHandler := newHTTPHandler(&debugstatus.Handler{
		CheckTraceAllowed: func(req *http.Request) (bool, error) {
			if req.Header.Get("Authorization") == "" {
				return false, errors.New("you shall not pass!")
			}
			return false, nil
		},
	})
	authHeader := make(http.Header)
	authHeader.Set("Authorization", "let me in")
	for _, path := range debugTracePaths {
		c.Run(path, func(c *qt.C) {
			qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
				Handler:      httpHandler,
				URL:          path,
				ExpectStatus: http.StatusInternalServerError,
				ExpectBody: httprequest.RemoteError{
					Message: "you shall not pass!",
				},
			})
			rr := qthttptest.DoRequest(c, qthttptest.DoRequestParams{
				Handler: httpHandler,
				URL:     path,
				Header:  authHeader,
			})
			c.Assert(rr.Code, qt.Equals, http.StatusOK)
		})
	}
}

func TestDebugEventsForbiddenWhenNotConfigured(t *testing.T) {
	c := qt.New(t)
	httpHandler := newHTTPHandler(&debugstatus.Handler{})
	for _, path := range debugTracePaths {
		c.Run(path, func(c *qt.C) {
			qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
				Handler:      httpHandler,
				URL:          path,
				ExpectStatus: http.StatusInternalServerError,
				ExpectBody: httprequest.RemoteError{
					Message: "no trace access configured",
				},
			})
		})
	}
}
