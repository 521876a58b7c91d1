// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/qthttptest"

	"github.com/release-engineering/waiverdb/internal/auth"
	"github.com/release-engineering/waiverdb/internal/events"
	"github.com/release-engineering/waiverdb/internal/identity"
	"github.com/release-engineering/waiverdb/internal/resultsdb"
	v1 "github.com/release-engineering/waiverdb/internal/v1"
	"github.com/release-engineering/waiverdb/internal/waiverdbtest"
	"github.com/release-engineering/waiverdb/params"
	"github.com/release-engineering/waiverdb/permission"
	"github.com/release-engineering/waiverdb/store"
	"github.com/release-engineering/waiverdb/store/memstore"
	"github.com/release-engineering/waiverdb/version"
)

const waiversURL = "/api/v1.0/waivers/"

type fixture struct {
	srv   *identity.Server
	store store.Store
}

func newFixture(c *qt.C, sp identity.ServerParams) *fixture {
	waiverdbtest.LogTo(c)
	if sp.Store == nil {
		sp.Store = memstore.NewStore()
	}
	if sp.Authenticator == nil {
		sp.Authenticator = auth.New(auth.Dummy{})
	}
	srv, err := identity.New(sp, map[string]identity.NewAPIHandlerFunc{
		"v1": v1.NewAPIHandler,
	})
	c.Assert(err, qt.IsNil)
	c.Cleanup(srv.Close)
	return &fixture{
		srv:   srv,
		store: sp.Store,
	}
}

// create creates waivers as the given user and returns the response
// body.
func (f *fixture) create(c *qt.C, user string, body interface{}) json.RawMessage {
	var resp json.RawMessage
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Method:       "POST",
		Handler:      f.srv,
		URL:          waiversURL,
		JSONBody:     body,
		Username:     user,
		ExpectStatus: http.StatusCreated,
		ExpectBody: qthttptest.BodyAsserter(func(c *qt.C, body json.RawMessage) {
			resp = body
		}),
	})
	return resp
}

func (f *fixture) createOne(c *qt.C, user string, body interface{}) params.Waiver {
	var w params.Waiver
	err := json.Unmarshal(f.create(c, user, body), &w)
	c.Assert(err, qt.IsNil)
	return w
}

func waiverBody(testcase string) map[string]interface{} {
	return map[string]interface{}{
		"subject_type":       "koji_build",
		"subject_identifier": "glibc-2.26-27.fc27",
		"testcase":           testcase,
		"product_version":    "fedora-27",
		"comment":            "it broke",
	}
}

func stringPtr(s string) *string {
	return &s
}

// withoutTimestamps returns ws with the timestamps zeroed.
func withoutTimestamps(ws ...params.Waiver) []params.Waiver {
	for i := range ws {
		ws[i].Timestamp = params.Time{}
	}
	return ws
}

func TestCreateWaiver(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	before := time.Now().UTC().Add(-time.Second)
	w := f.createOne(c, "alice", waiverBody("dist.rpmdeplint"))
	c.Assert(w.Timestamp.After(before), qt.IsTrue)
	c.Assert(withoutTimestamps(w), qt.DeepEquals, []params.Waiver{{
		ID:                w.ID,
		SubjectType:       "koji_build",
		SubjectIdentifier: "glibc-2.26-27.fc27",
		Subject: map[string]string{
			"type": "koji_build",
			"item": "glibc-2.26-27.fc27",
		},
		Testcase:       "dist.rpmdeplint",
		Username:       "alice",
		ProductVersion: "fedora-27",
		Waived:         true,
		Comment:        "it broke",
	}})

	stored, err := f.store.Waiver(context.Background(), w.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Username, qt.Equals, "alice")
	c.Assert(stored.Waived, qt.IsTrue)
}

func TestCreateWaiverNotWaived(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	body := waiverBody("dist.rpmdeplint")
	body["waived"] = false
	body["scenario"] = "x86_64"
	w := f.createOne(c, "alice", body)
	c.Assert(w.Waived, qt.IsFalse)
	c.Assert(w.Scenario, qt.DeepEquals, stringPtr("x86_64"))
}

func TestCreateWaiverRequiresAuthentication(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	rr := qthttptest.DoRequest(c, qthttptest.DoRequestParams{
		Method:   "POST",
		Handler:  f.srv,
		URL:      waiversURL,
		JSONBody: waiverBody("dist.rpmdeplint"),
	})
	c.Assert(rr.Code, qt.Equals, http.StatusUnauthorized)
	c.Assert(rr.Header().Get("WWW-Authenticate"), qt.Equals, `Basic realm="dummy"`)
	var perr params.Error
	err := json.Unmarshal(rr.Body.Bytes(), &perr)
	c.Assert(err, qt.IsNil)
	c.Assert(perr, qt.DeepEquals, params.Error{
		Code:    params.ErrUnauthorized,
		Message: "Unauthorized",
	})
}

var createWaiverErrorTests = []struct {
	about         string
	body          map[string]interface{}
	expectMessage string
}{{
	about: "missing subject type",
	body: map[string]interface{}{
		"subject_identifier": "glibc-2.26-27.fc27",
		"testcase":           "t1",
		"product_version":    "fedora-27",
		"comment":            "it broke",
	},
	expectMessage: "Argument subject_type is missing",
}, {
	about: "missing subject identifier",
	body: map[string]interface{}{
		"subject_type":    "koji_build",
		"testcase":        "t1",
		"product_version": "fedora-27",
		"comment":         "it broke",
	},
	expectMessage: "Argument subject_identifier is missing",
}, {
	about: "missing testcase",
	body: map[string]interface{}{
		"subject_type":       "koji_build",
		"subject_identifier": "glibc-2.26-27.fc27",
		"product_version":    "fedora-27",
		"comment":            "it broke",
	},
	expectMessage: "Argument testcase is missing",
}, {
	about: "missing product version",
	body: map[string]interface{}{
		"subject_type":       "koji_build",
		"subject_identifier": "glibc-2.26-27.fc27",
		"testcase":           "t1",
		"comment":            "it broke",
	},
	expectMessage: "Argument product_version is missing",
}, {
	about: "missing comment",
	body: map[string]interface{}{
		"subject_type":       "koji_build",
		"subject_identifier": "glibc-2.26-27.fc27",
		"testcase":           "t1",
		"product_version":    "fedora-27",
	},
	expectMessage: "Argument comment is missing",
}, {
	about: "result id with subject",
	body: map[string]interface{}{
		"result_id":       123,
		"subject":         map[string]string{"type": "koji_build", "item": "glibc-2.26-27.fc27"},
		"product_version": "fedora-27",
		"comment":         "it broke",
	},
	expectMessage: `result_id argument should not be used together with arguments: "subject", "subject_type", "subject_identifier", "testcase" or "scenario"`,
}, {
	about: "subject with subject type",
	body: map[string]interface{}{
		"subject":         map[string]string{"type": "koji_build", "item": "glibc-2.26-27.fc27"},
		"subject_type":    "koji_build",
		"testcase":        "t1",
		"product_version": "fedora-27",
		"comment":         "it broke",
	},
	expectMessage: `subject argument should not be used together with arguments: "subject_type" or "subject_identifier"`,
}, {
	about: "invalid legacy subject",
	body: map[string]interface{}{
		"subject":         map[string]string{"type": "bodhi_update"},
		"testcase":        "t1",
		"product_version": "fedora-27",
		"comment":         "it broke",
	},
	expectMessage: `Invalid subject: subject type should be a non-empty string, actual value is: {"type": "bodhi_update"}`,
}, {
	about: "result id without resultsdb",
	body: map[string]interface{}{
		"result_id":       123,
		"product_version": "fedora-27",
		"comment":         "it broke",
	},
	expectMessage: "result_id is not supported: no ResultsDB configured",
}}

func TestCreateWaiverErrors(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	for _, test := range createWaiverErrorTests {
		c.Run(test.about, func(c *qt.C) {
			qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
				Method:       "POST",
				Handler:      f.srv,
				URL:          waiversURL,
				JSONBody:     test.body,
				Username:     "alice",
				ExpectStatus: http.StatusBadRequest,
				ExpectBody: params.Error{
					Code:    params.ErrBadRequest,
					Message: test.expectMessage,
				},
			})
		})
	}
}

func TestCreateWaiverLegacySubject(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	w := f.createOne(c, "alice", map[string]interface{}{
		"subject":         map[string]string{"productmd.compose.id": "Fedora-9000-19700101.n.18"},
		"testcase":        "compose.install_no_user",
		"product_version": "fedora-9000",
		"comment":         "it broke",
	})
	c.Assert(w.SubjectType, qt.Equals, "compose")
	c.Assert(w.SubjectIdentifier, qt.Equals, "Fedora-9000-19700101.n.18")
	c.Assert(w.Subject, qt.DeepEquals, map[string]string{
		"productmd.compose.id": "Fedora-9000-19700101.n.18",
	})
}

func TestCreateWaiverNormalizesBrewBuild(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	body := waiverBody("dist.rpmdeplint")
	body["subject_type"] = "brew-build"
	w := f.createOne(c, "alice", body)
	c.Assert(w.SubjectType, qt.Equals, "koji_build")
}

func TestCreateWaiverProxy(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{
		Superusers: []string{"bodhi"},
	})
	body := waiverBody("dist.rpmdeplint")
	body["username"] = "alice"
	w := f.createOne(c, "bodhi", body)
	c.Assert(w.Username, qt.Equals, "alice")
	c.Assert(w.ProxiedBy, qt.DeepEquals, stringPtr("bodhi"))

	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Method:       "POST",
		Handler:      f.srv,
		URL:          waiversURL,
		JSONBody:     body,
		Username:     "mallory",
		ExpectStatus: http.StatusForbidden,
		ExpectBody: params.Error{
			Code:    params.ErrForbidden,
			Message: "user mallory does not have the proxyuser ability",
		},
	})
}

func TestCreateWaiverPermissions(t *testing.T) {
	c := qt.New(t)
	rules, err := permission.Permissions([]permission.Rule{{
		Name:      "kernel-qe",
		Testcases: []string{"kernel-qe.*"},
		Users:     []string{"alice"},
	}}, nil)
	c.Assert(err, qt.IsNil)
	f := newFixture(c, identity.ServerParams{
		Permissions: rules,
	})
	f.createOne(c, "alice", waiverBody("kernel-qe.tier1"))
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Method:       "POST",
		Handler:      f.srv,
		URL:          waiversURL,
		JSONBody:     waiverBody("kernel-qe.tier1"),
		Username:     "bob",
		ExpectStatus: http.StatusForbidden,
		ExpectBody: params.Error{
			Code:    params.ErrForbidden,
			Message: "User bob is not authorized to submit results for the test case kernel-qe.tier1",
		},
	})
}

func TestCreateWaiversBatch(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	var ws []params.Waiver
	err := json.Unmarshal(f.create(c, "alice", []interface{}{
		waiverBody("t1"),
		waiverBody("t2"),
	}), &ws)
	c.Assert(err, qt.IsNil)
	c.Assert(ws, qt.HasLen, 2)
	c.Assert(ws[0].Testcase, qt.Equals, "t1")
	c.Assert(ws[1].Testcase, qt.Equals, "t2")
	c.Assert(ws[1].ID > ws[0].ID, qt.IsTrue)
}

func TestCreateWaiversBatchIsAtomic(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	bad := waiverBody("t2")
	delete(bad, "testcase")
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Method:       "POST",
		Handler:      f.srv,
		URL:          waiversURL,
		JSONBody:     []interface{}{waiverBody("t1"), bad},
		Username:     "alice",
		ExpectStatus: http.StatusBadRequest,
		ExpectBody: params.Error{
			Code:    params.ErrBadRequest,
			Message: "Argument testcase is missing",
		},
	})
	n, err := f.store.CountWaivers(context.Background(), &store.Query{IncludeObsolete: true})
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
}

func newResultsDB(c *qt.C) *resultsdb.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/results/123":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{
				"id": 123,
				"outcome": "FAILED",
				"testcase": {"name": "dist.rpmdeplint"},
				"data": {
					"type": ["brew-build"],
					"item": ["glibc-2.26-27.fc27"],
					"scenario": ["x86_64"]
				}
			}`)
		case "/results/500":
			http.Error(w, "oops", http.StatusInternalServerError)
		default:
			http.NotFound(w, req)
		}
	}))
	c.Cleanup(srv.Close)
	return resultsdb.New(srv.URL, nil)
}

func TestCreateWaiverByResultID(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{
		ResultsDB: newResultsDB(c),
	})
	w := f.createOne(c, "alice", map[string]interface{}{
		"result_id":       123,
		"product_version": "fedora-27",
		"comment":         "it broke",
	})
	c.Assert(w.SubjectType, qt.Equals, "koji_build")
	c.Assert(w.SubjectIdentifier, qt.Equals, "glibc-2.26-27.fc27")
	c.Assert(w.Testcase, qt.Equals, "dist.rpmdeplint")
	c.Assert(w.Scenario, qt.DeepEquals, stringPtr("x86_64"))
}

func TestCreateWaiverByResultIDErrors(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{
		ResultsDB: newResultsDB(c),
	})
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Method:  "POST",
		Handler: f.srv,
		URL:     waiversURL,
		JSONBody: map[string]interface{}{
			"result_id":       404,
			"product_version": "fedora-27",
			"comment":         "it broke",
		},
		Username:     "alice",
		ExpectStatus: http.StatusBadRequest,
		ExpectBody: params.Error{
			Code:    params.ErrBadRequest,
			Message: "Result id not found in Resultsdb",
		},
	})
	rr := qthttptest.DoRequest(c, qthttptest.DoRequestParams{
		Method:  "POST",
		Handler: f.srv,
		URL:     waiversURL,
		JSONBody: map[string]interface{}{
			"result_id":       500,
			"product_version": "fedora-27",
			"comment":         "it broke",
		},
		Username: "alice",
	})
	c.Assert(rr.Code, qt.Equals, http.StatusServiceUnavailable)
	var perr params.Error
	err := json.Unmarshal(rr.Body.Bytes(), &perr)
	c.Assert(err, qt.IsNil)
	c.Assert(perr.Message, qt.Matches, `Failed looking up result in Resultsdb: .*`)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []*events.Message
}

func (p *fakePublisher) Publish(_ context.Context, m *events.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, m)
	return nil
}

func (p *fakePublisher) Close() error {
	return nil
}

func (p *fakePublisher) published() []*events.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.Message(nil), p.messages...)
}

func TestCreateWaiverPublishesMessage(t *testing.T) {
	c := qt.New(t)
	pub := &fakePublisher{}
	d := events.NewDispatcher(events.DispatcherParams{
		Publisher:   pub,
		TopicPrefix: "org.example.",
	})
	defer d.Close()
	f := newFixture(c, identity.ServerParams{
		Events: d,
	})
	w := f.createOne(c, "alice", waiverBody("dist.rpmdeplint"))

	deadline := time.Now().Add(5 * time.Second)
	for len(pub.published()) == 0 {
		if time.Now().After(deadline) {
			c.Fatalf("no message published")
		}
		time.Sleep(time.Millisecond)
	}
	msgs := pub.published()
	c.Assert(msgs, qt.HasLen, 1)
	c.Assert(msgs[0].Topic, qt.Equals, "org.example.waiverdb.waiver.new")
	var body params.Waiver
	err := json.Unmarshal(msgs[0].Body, &body)
	c.Assert(err, qt.IsNil)
	c.Assert(body.ID, qt.Equals, w.ID)
	c.Assert(body.Testcase, qt.Equals, "dist.rpmdeplint")
}

func TestGetWaiver(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	w := f.createOne(c, "alice", waiverBody("dist.rpmdeplint"))
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Handler:    f.srv,
		URL:        fmt.Sprintf("%s%d", waiversURL, w.ID),
		ExpectBody: w,
	})
}

func TestGetWaiverNotFound(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Handler:      f.srv,
		URL:          waiversURL + "1234",
		ExpectStatus: http.StatusNotFound,
		ExpectBody: params.Error{
			Code:    params.ErrNotFound,
			Message: "Waiver not found",
		},
	})
}

func TestGetWaiverBadID(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	rr := qthttptest.DoRequest(c, qthttptest.DoRequestParams{
		Handler: f.srv,
		URL:     waiversURL + "abc",
	})
	c.Assert(rr.Code, qt.Equals, http.StatusBadRequest)
}

// forwardedHeader holds the headers set by a proxy in front of the
// server.
var forwardedHeader = http.Header{
	"X-Forwarded-Host":  {"waiverdb.example.com"},
	"X-Forwarded-Proto": {"http"},
}

func decodePage(c *qt.C, body []byte) params.WaiverPage {
	var page params.WaiverPage
	err := json.Unmarshal(body, &page)
	c.Assert(err, qt.IsNil)
	return page
}

func TestListWaiversPagination(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	w1 := f.createOne(c, "alice", waiverBody("t1"))
	w2 := f.createOne(c, "alice", waiverBody("t2"))
	w3 := f.createOne(c, "alice", waiverBody("t3"))

	const base = "http://waiverdb.example.com" + waiversURL
	rr := qthttptest.DoRequest(c, qthttptest.DoRequestParams{
		Handler: f.srv,
		URL:     waiversURL + "?limit=2",
		Header:  forwardedHeader,
	})
	c.Assert(rr.Code, qt.Equals, http.StatusOK)
	page := decodePage(c, rr.Body.Bytes())
	c.Assert(waiverIDs(page.Data), qt.DeepEquals, []int64{w3.ID, w2.ID})
	c.Assert(page.Prev, qt.IsNil)
	c.Assert(page.Next, qt.DeepEquals, stringPtr(base+"?limit=2&page=2"))
	c.Assert(page.First, qt.DeepEquals, stringPtr(base+"?limit=2&page=1"))
	c.Assert(page.Last, qt.DeepEquals, stringPtr(base+"?limit=2&page=2"))

	rr = qthttptest.DoRequest(c, qthttptest.DoRequestParams{
		Handler: f.srv,
		URL:     waiversURL + "?limit=2&page=2",
		Header:  forwardedHeader,
	})
	c.Assert(rr.Code, qt.Equals, http.StatusOK)
	page = decodePage(c, rr.Body.Bytes())
	c.Assert(waiverIDs(page.Data), qt.DeepEquals, []int64{w1.ID})
	c.Assert(page.Prev, qt.DeepEquals, stringPtr(base+"?limit=2&page=1"))
	c.Assert(page.Next, qt.IsNil)

	rr = qthttptest.DoRequest(c, qthttptest.DoRequestParams{
		Handler: f.srv,
		URL:     waiversURL + "?limit=2&page=3",
		Header:  forwardedHeader,
	})
	c.Assert(rr.Code, qt.Equals, http.StatusOK)
	c.Assert(decodePage(c, rr.Body.Bytes()), qt.DeepEquals, params.WaiverPage{
		Data: []params.Waiver{},
	})
}

func TestListWaiversEmpty(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	const base = "http://waiverdb.example.com" + waiversURL
	rr := qthttptest.DoRequest(c, qthttptest.DoRequestParams{
		Handler: f.srv,
		URL:     waiversURL,
		Header:  forwardedHeader,
	})
	c.Assert(rr.Code, qt.Equals, http.StatusOK)
	c.Assert(decodePage(c, rr.Body.Bytes()), qt.DeepEquals, params.WaiverPage{
		Data:  []params.Waiver{},
		First: stringPtr(base + "?page=1"),
		Last:  stringPtr(base + "?page=0"),
	})
}

func TestListWaiversFiltersAndObsolete(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	old := f.createOne(c, "alice", waiverBody("t1"))
	current := f.createOne(c, "alice", waiverBody("t1"))
	other := f.createOne(c, "alice", waiverBody("t2"))

	rr := qthttptest.DoRequest(c, qthttptest.DoRequestParams{
		Handler: f.srv,
		URL:     waiversURL,
	})
	c.Assert(waiverIDs(decodePage(c, rr.Body.Bytes()).Data), qt.DeepEquals, []int64{other.ID, current.ID})

	rr = qthttptest.DoRequest(c, qthttptest.DoRequestParams{
		Handler: f.srv,
		URL:     waiversURL + "?include_obsolete=true&testcase=t1",
	})
	c.Assert(waiverIDs(decodePage(c, rr.Body.Bytes()).Data), qt.DeepEquals, []int64{current.ID, old.ID})
}

var listWaiversErrorTests = []struct {
	about         string
	query         string
	expectMessage string
}{{
	about:         "bad since",
	query:         "since=yesterday",
	expectMessage: `since: invalid timestamp "yesterday"`,
}, {
	about:         "bad page",
	query:         "page=0",
	expectMessage: "page: must be a positive integer",
}, {
	about:         "bad limit",
	query:         "limit=-1",
	expectMessage: "limit: must be a positive integer",
}}

func TestListWaiversErrors(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	for _, test := range listWaiversErrorTests {
		c.Run(test.about, func(c *qt.C) {
			qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
				Handler:      f.srv,
				URL:          waiversURL + "?" + test.query,
				ExpectStatus: http.StatusBadRequest,
				ExpectBody: params.Error{
					Code:    params.ErrBadRequest,
					Message: test.expectMessage,
				},
			})
		})
	}
}

func TestFilterWaivers(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	w1 := f.createOne(c, "alice", waiverBody("t1"))
	f.createOne(c, "alice", waiverBody("t2"))
	w3 := f.createOne(c, "bob", waiverBody("t3"))

	var list params.WaiverList
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Method:  "POST",
		Handler: f.srv,
		URL:     waiversURL + "+filtered",
		JSONBody: params.FilterWaivers{
			Filters: []params.WaiverFilter{{
				Testcase: "t1",
			}, {
				Username: "bob",
			}},
		},
		ExpectBody: qthttptest.BodyAsserter(func(c *qt.C, body json.RawMessage) {
			err := json.Unmarshal(body, &list)
			c.Assert(err, qt.IsNil)
		}),
	})
	c.Assert(waiverIDs(list.Data), qt.DeepEquals, []int64{w3.ID, w1.ID})
}

func TestFilterWaiversRequiresFilters(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	for _, body := range []interface{}{
		map[string]interface{}{},
		map[string]interface{}{"filters": []interface{}{}},
		map[string]interface{}{"filters": []interface{}{map[string]interface{}{}}},
		map[string]interface{}{"filters": []interface{}{
			map[string]interface{}{"testcase": "t1"},
			map[string]interface{}{},
		}},
	} {
		qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
			Method:       "POST",
			Handler:      f.srv,
			URL:          waiversURL + "+filtered",
			JSONBody:     body,
			ExpectStatus: http.StatusBadRequest,
			ExpectBody: params.Error{
				Code:    params.ErrBadRequest,
				Message: "filters: Must be a list of non-empty dictionaries",
			},
		})
	}
}

func TestWaiversBySubjectsAndTestcases(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	w1 := f.createOne(c, "alice", waiverBody("t1"))
	f.createOne(c, "alice", waiverBody("t2"))

	var list params.WaiverList
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Method:  "POST",
		Handler: f.srv,
		URL:     waiversURL + "+by-subjects-and-testcases",
		JSONBody: params.WaiversBySubjectsAndTestcases{
			Results: []params.SubjectTestcase{{
				Subject: map[string]string{
					"type": "koji_build",
					"item": "glibc-2.26-27.fc27",
				},
				Testcase: "t1",
			}},
			ProductVersion: "fedora-27",
		},
		ExpectBody: qthttptest.BodyAsserter(func(c *qt.C, body json.RawMessage) {
			err := json.Unmarshal(body, &list)
			c.Assert(err, qt.IsNil)
		}),
	})
	c.Assert(waiverIDs(list.Data), qt.DeepEquals, []int64{w1.ID})
}

func TestWaiversBySubjectsAndTestcasesNoResults(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{})
	w1 := f.createOne(c, "alice", waiverBody("t1"))
	w2 := f.createOne(c, "alice", waiverBody("t2"))

	var list params.WaiverList
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Method:   "POST",
		Handler:  f.srv,
		URL:      waiversURL + "+by-subjects-and-testcases",
		JSONBody: map[string]interface{}{},
		ExpectBody: qthttptest.BodyAsserter(func(c *qt.C, body json.RawMessage) {
			err := json.Unmarshal(body, &list)
			c.Assert(err, qt.IsNil)
		}),
	})
	c.Assert(waiverIDs(list.Data), qt.DeepEquals, []int64{w2.ID, w1.ID})
}

func TestAbout(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c, identity.ServerParams{
		Authenticator: auth.New(auth.Dummy{}, &auth.SSL{}),
	})
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Handler: f.srv,
		URL:     "/api/v1.0/about",
		ExpectBody: params.AboutResponse{
			Version:     version.VersionInfo.Version,
			AuthMethod:  "dummy",
			AuthMethods: []string{"dummy", "ssl"},
		},
	})
}

func TestConfig(t *testing.T) {
	c := qt.New(t)
	mapping := permission.Mapping{{
		Pattern: "^dist",
		Users:   []string{"alice"},
	}}
	rules, err := permission.Permissions(nil, mapping)
	c.Assert(err, qt.IsNil)
	f := newFixture(c, identity.ServerParams{
		Permissions:       rules,
		PermissionMapping: mapping,
		Superusers:        []string{"bodhi"},
	})
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Handler: f.srv,
		URL:     "/api/v1.0/config",
		ExpectBody: params.ConfigResponse{
			PermissionMapping: map[string]params.PermissionMappingEntry{
				"^dist": {
					Groups: []string{},
					Users:  []string{"alice"},
				},
			},
			Permissions: []params.PermissionRule{{
				Name:                 "^dist",
				TestcaseRegexPattern: "^dist",
				Maintainers:          []string{},
				Users:                []string{"alice"},
				Groups:               []string{},
			}},
			Superusers: []string{"bodhi"},
		},
	})
}

func TestPermissions(t *testing.T) {
	c := qt.New(t)
	rules, err := permission.Permissions([]permission.Rule{{
		Name:      "r1",
		Testcases: []string{"dist.*"},
		Users:     []string{"alice"},
	}, {
		Name:      "r2",
		Testcases: []string{"kernel-qe.*"},
		Groups:    []string{"kernel-qe"},
	}}, nil)
	c.Assert(err, qt.IsNil)
	f := newFixture(c, identity.ServerParams{
		Permissions: rules,
	})
	r1 := params.PermissionRule{
		Name:        "r1",
		Maintainers: []string{},
		Testcases:   []string{"dist.*"},
		Users:       []string{"alice"},
		Groups:      []string{},
	}
	r2 := params.PermissionRule{
		Name:        "r2",
		Maintainers: []string{},
		Testcases:   []string{"kernel-qe.*"},
		Users:       []string{},
		Groups:      []string{"kernel-qe"},
	}
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Handler:    f.srv,
		URL:        "/api/v1.0/permissions",
		ExpectBody: []params.PermissionRule{r1, r2},
	})
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Handler:    f.srv,
		URL:        "/api/v1.0/permissions?testcase=kernel-qe.tier1",
		ExpectBody: []params.PermissionRule{r2},
	})
	qthttptest.AssertJSONCall(c, qthttptest.JSONCallParams{
		Handler:    f.srv,
		URL:        "/api/v1.0/permissions?testcase=other",
		ExpectBody: []params.PermissionRule{},
	})
}

func waiverIDs(ws []params.Waiver) []int64 {
	ids := make([]int64, len(ws))
	for i, w := range ws {
		ids[i] = w.ID
	}
	return ids
}
