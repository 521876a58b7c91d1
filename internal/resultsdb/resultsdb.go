// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package resultsdb looks up test results in ResultsDB.
package resultsdb

import (
	"context"
	"net/http"

	"github.com/juju/loggo"
	"gopkg.in/errgo.v1"
	"gopkg.in/httprequest.v1"

	"github.com/release-engineering/waiverdb/store"
)

var logger = loggo.GetLogger("waiverdb.internal.resultsdb")

// ErrNotFound is the cause of the error returned when a result does
// not exist.
var ErrNotFound = errgo.New("result not found")

// ErrNoSubject is the cause of the error returned when the subject of
// a result cannot be determined.
var ErrNoSubject = errgo.New("It is not possible to submit a waiver by id for this result. Please try again specifying a subject and a testcase.")

// A Result is a test result as returned by ResultsDB.
type Result struct {
	ID       int64 `json:"id"`
	Outcome  string `json:"outcome"`
	Testcase struct {
		Name string `json:"name"`
	} `json:"testcase"`

	// Data holds the extra data of the result. Every value is a
	// list of strings.
	Data map[string][]string `json:"data"`
}

// Subject returns the subject type and identifier the result was
// recorded for.
func (r *Result) Subject() (subjectType, subjectIdentifier string, err error) {
	if nvr := first(r.Data["original_spec_nvr"]); nvr != "" {
		return store.KojiBuild, nvr, nil
	}
	t := first(r.Data["type"])
	if t == "" {
		return "", "", ErrNoSubject
	}
	return store.NormalizeSubjectType(t), first(r.Data["item"]), nil
}

// Scenario returns the scenario of the result, if any.
func (r *Result) Scenario() string {
	return first(r.Data["scenario"])
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// A Client is a ResultsDB API client.
type Client struct {
	client httprequest.Client
}

// New returns a client for the ResultsDB API at the given URL, for
// example "https://resultsdb.example.com/api/v2.0". If doer is nil,
// http.DefaultClient is used.
func New(apiURL string, doer httprequest.Doer) *Client {
	return &Client{
		client: httprequest.Client{
			BaseURL:        apiURL,
			Doer:           doer,
			UnmarshalError: unmarshalError,
		},
	}
}

type resultRequest struct {
	httprequest.Route `httprequest:"GET /results/:id"`
	ID                int64 `httprequest:"id,path"`
}

// Result returns the result with the given id. If there is no such
// result an error with a cause of ErrNotFound is returned.
func (c *Client) Result(ctx context.Context, id int64) (*Result, error) {
	var r Result
	if err := c.client.Call(ctx, &resultRequest{ID: id}, &r); err != nil {
		logger.Infof("cannot get result %d: %s", id, err)
		return nil, errgo.Mask(err, errgo.Is(ErrNotFound))
	}
	return &r, nil
}

func unmarshalError(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return errgo.Newf("unexpected response status %q", resp.Status)
}
