// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package waiverdbclient provides a client for the waiverdb HTTP API.
package waiverdbclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"gopkg.in/errgo.v1"
	"gopkg.in/httprequest.v1"

	"github.com/release-engineering/waiverdb/params"
)

// NewParams holds the parameters for creating a new client.
type NewParams struct {
	// BaseURL holds the URL of the waiverdb server, without the
	// /api/v1.0 suffix.
	BaseURL string

	// Doer holds the client to use to make requests. If it is nil,
	// http.DefaultClient is used.
	Doer httprequest.Doer

	// Username and Password, if set, are sent with every request
	// using HTTP basic authentication.
	Username string
	Password string
}

// Client represents a client of a waiverdb server.
type Client struct {
	client httprequest.Client
}

// New returns a new client.
func New(p NewParams) (*Client, error) {
	u, err := url.Parse(p.BaseURL)
	if p.BaseURL == "" || err != nil || u.Host == "" {
		return nil, errgo.Newf("bad waiverdb client base URL %q", p.BaseURL)
	}
	doer := p.Doer
	if doer == nil {
		doer = http.DefaultClient
	}
	if p.Username != "" {
		doer = basicAuthDoer{
			doer:     doer,
			username: p.Username,
			password: p.Password,
		}
	}
	return &Client{
		client: httprequest.Client{
			BaseURL:        p.BaseURL,
			Doer:           doer,
			UnmarshalError: httprequest.ErrorUnmarshaler(new(params.Error)),
		},
	}, nil
}

// CreateWaiver creates a single waiver.
func (c *Client) CreateWaiver(ctx context.Context, w *params.CreateWaiver) (*params.Waiver, error) {
	body, err := json.Marshal(w)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	var resp params.Waiver
	if err := c.client.Call(ctx, &params.CreateWaiversRequest{Body: body}, &resp); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return &resp, nil
}

// CreateWaivers creates all the given waivers or none of them.
func (c *Client) CreateWaivers(ctx context.Context, ws []params.CreateWaiver) ([]params.Waiver, error) {
	if ws == nil {
		ws = []params.CreateWaiver{}
	}
	body, err := json.Marshal(ws)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	var resp []params.Waiver
	if err := c.client.Call(ctx, &params.CreateWaiversRequest{Body: body}, &resp); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return resp, nil
}

// ListWaivers returns one page of the waivers matching req.
func (c *Client) ListWaivers(ctx context.Context, req *params.ListWaiversRequest) (*params.WaiverPage, error) {
	var resp params.WaiverPage
	if err := c.client.Call(ctx, req, &resp); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return &resp, nil
}

// ListAllWaivers returns the waivers matching req from all pages,
// starting at the page given in req.
func (c *Client) ListAllWaivers(ctx context.Context, req params.ListWaiversRequest) ([]params.Waiver, error) {
	page := 1
	if req.Page != "" {
		p, err := strconv.Atoi(req.Page)
		if err != nil {
			return nil, errgo.Newf("invalid page %q", req.Page)
		}
		page = p
	}
	var ws []params.Waiver
	for {
		req.Page = strconv.Itoa(page)
		resp, err := c.ListWaivers(ctx, &req)
		if err != nil {
			return nil, errgo.Mask(err, errgo.Any)
		}
		ws = append(ws, resp.Data...)
		if resp.Next == nil {
			return ws, nil
		}
		page++
	}
}

// GetWaiver returns the waiver with the given id.
func (c *Client) GetWaiver(ctx context.Context, id int64) (*params.Waiver, error) {
	var resp params.Waiver
	if err := c.client.Call(ctx, &params.GetWaiverRequest{ID: id}, &resp); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return &resp, nil
}

// FilterWaivers returns all the waivers matching any of the given
// filters.
func (c *Client) FilterWaivers(ctx context.Context, f params.FilterWaivers) ([]params.Waiver, error) {
	var resp params.WaiverList
	if err := c.client.Call(ctx, &params.FilterWaiversRequest{Body: f}, &resp); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return resp.Data, nil
}

// WaiversBySubjectsAndTestcases returns the waivers for the given
// legacy subjects.
func (c *Client) WaiversBySubjectsAndTestcases(ctx context.Context, q params.WaiversBySubjectsAndTestcases) ([]params.Waiver, error) {
	var resp params.WaiverList
	if err := c.client.Call(ctx, &params.WaiversBySubjectsAndTestcasesRequest{Body: q}, &resp); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return resp.Data, nil
}

// About returns information about the server.
func (c *Client) About(ctx context.Context) (*params.AboutResponse, error) {
	var resp params.AboutResponse
	if err := c.client.Call(ctx, &params.AboutRequest{}, &resp); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return &resp, nil
}

// Config returns the public configuration of the server.
func (c *Client) Config(ctx context.Context) (*params.ConfigResponse, error) {
	var resp params.ConfigResponse
	if err := c.client.Call(ctx, &params.ConfigRequest{}, &resp); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return &resp, nil
}

// Permissions returns the permission rules. If testcase is not empty
// only the rules that apply to it are returned.
func (c *Client) Permissions(ctx context.Context, testcase string) ([]params.PermissionRule, error) {
	var resp []params.PermissionRule
	if err := c.client.Call(ctx, &params.PermissionsRequest{Testcase: testcase}, &resp); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	return resp, nil
}

type basicAuthDoer struct {
	doer               httprequest.Doer
	username, password string
}

// Do implements httprequest.Doer.
func (d basicAuthDoer) Do(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(d.username, d.password)
	return d.doer.Do(req)
}
