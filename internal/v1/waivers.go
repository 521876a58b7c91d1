// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"gopkg.in/errgo.v1"
	"gopkg.in/httprequest.v1"

	"github.com/release-engineering/waiverdb/internal/authz"
	"github.com/release-engineering/waiverdb/internal/resultsdb"
	"github.com/release-engineering/waiverdb/params"
	"github.com/release-engineering/waiverdb/store"
)

// CreateWaivers creates one waiver, or a list of waivers atomically,
// on behalf of the authenticated user.
func (h *handler) CreateWaivers(p httprequest.Params, req *params.CreateWaiversRequest) error {
	user, err := h.h.params.Authenticator.Authenticate(p.Context, p.Request)
	if err != nil {
		h.trace.LazyPrintf("authentication failed: %v", err)
		h.trace.SetError()
		return errgo.Mask(err, errgo.Any)
	}
	h.trace.LazyPrintf("authenticated as %s", user)
	var reqs []params.CreateWaiver
	batch := req.IsBatch()
	if batch {
		err = json.Unmarshal(req.Body, &reqs)
	} else {
		reqs = make([]params.CreateWaiver, 1)
		err = json.Unmarshal(req.Body, &reqs[0])
	}
	if err != nil {
		return errgo.WithCausef(nil, params.ErrBadRequest, "invalid request body: %s", err)
	}
	ws := make([]*store.Waiver, len(reqs))
	for i := range reqs {
		ws[i], err = h.newWaiver(p.Context, user, &reqs[i])
		if err != nil {
			h.trace.LazyPrintf("waiver %d rejected: %v", i, err)
			h.trace.SetError()
			return errgo.Mask(err, errgo.Any)
		}
	}
	if err := h.h.params.Store.AddWaivers(p.Context, ws); err != nil {
		if errgo.Cause(err) == store.ErrInvalidWaiver {
			return errgo.WithCausef(nil, params.ErrBadRequest, "%s", err.Error())
		}
		return errgo.Mask(err)
	}
	h.trace.LazyPrintf("stored %d waivers", len(ws))
	created := make([]params.Waiver, len(ws))
	for i, w := range ws {
		created[i] = waiverParams(w)
		logger.Infof("user %s created waiver %d for %s/%s %s", user, w.ID, w.SubjectType, w.SubjectIdentifier, w.Testcase)
	}
	h.h.params.Events.WaiversCreated(created)
	if batch {
		return httprequest.WriteJSON(p.Response, http.StatusCreated, created)
	}
	return httprequest.WriteJSON(p.Response, http.StatusCreated, created[0])
}

// newWaiver checks the given waiver creation request made by caller and
// returns the waiver to store.
func (h *handler) newWaiver(ctx context.Context, caller string, cw *params.CreateWaiver) (*store.Waiver, error) {
	if cw.ResultID != 0 && (cw.Subject != nil || cw.SubjectType != "" || cw.SubjectIdentifier != "" || cw.Testcase != "" || cw.Scenario != "") {
		return nil, badRequestf(`result_id argument should not be used together with arguments: "subject", "subject_type", "subject_identifier", "testcase" or "scenario"`)
	}
	if cw.Subject != nil && (cw.SubjectType != "" || cw.SubjectIdentifier != "") {
		return nil, badRequestf(`subject argument should not be used together with arguments: "subject_type" or "subject_identifier"`)
	}
	if cw.ProductVersion == "" {
		return nil, badRequestf("Argument product_version is missing")
	}
	if cw.Comment == "" {
		return nil, badRequestf("Argument comment is missing")
	}
	w := &store.Waiver{
		SubjectType:       cw.SubjectType,
		SubjectIdentifier: cw.SubjectIdentifier,
		Testcase:          cw.Testcase,
		Scenario:          cw.Scenario,
		Username:          caller,
		ProductVersion:    cw.ProductVersion,
		Waived:            cw.Waived == nil || *cw.Waived,
		Comment:           cw.Comment,
	}
	if cw.Username != "" {
		if !h.isSuperuser(caller) {
			return nil, errgo.WithCausef(nil, params.ErrForbidden, "user %s does not have the proxyuser ability", caller)
		}
		w.ProxiedBy = caller
		w.Username = cw.Username
	}
	switch {
	case cw.ResultID != 0:
		if err := h.fillFromResult(ctx, w, cw.ResultID); err != nil {
			return nil, errgo.Mask(err, errgo.Any)
		}
	case cw.Subject != nil:
		var err error
		w.SubjectType, w.SubjectIdentifier, err = store.SubjectFromDict(cw.Subject)
		if err != nil {
			return nil, badRequestf("Invalid subject: %s", err)
		}
	}
	switch {
	case w.SubjectType == "":
		return nil, badRequestf("Argument subject_type is missing")
	case w.SubjectIdentifier == "":
		return nil, badRequestf("Argument subject_identifier is missing")
	case w.Testcase == "":
		return nil, badRequestf("Argument testcase is missing")
	}
	if err := authz.VerifyAuthorization(ctx, w.Username, w.Testcase, h.h.params.Permissions, h.h.params.Directory); err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	w.SubjectType = store.NormalizeSubjectType(w.SubjectType)
	return w, nil
}

// fillFromResult sets the subject, testcase and scenario of w from the
// ResultsDB result with the given id.
func (h *handler) fillFromResult(ctx context.Context, w *store.Waiver, id int64) error {
	if h.h.params.ResultsDB == nil {
		return badRequestf("result_id is not supported: no ResultsDB configured")
	}
	r, err := h.h.params.ResultsDB.Result(ctx, id)
	if err != nil {
		if errgo.Cause(err) == resultsdb.ErrNotFound {
			return badRequestf("Result id not found in Resultsdb")
		}
		return errgo.WithCausef(nil, params.ErrServiceUnavailable, "Failed looking up result in Resultsdb: %s", err)
	}
	w.SubjectType, w.SubjectIdentifier, err = r.Subject()
	if err != nil {
		return badRequestf("%s", err)
	}
	w.Testcase = r.Testcase.Name
	w.Scenario = r.Scenario()
	return nil
}

// ListWaivers returns a page of the waivers matching the request.
func (h *handler) ListWaivers(p httprequest.Params, req *params.ListWaiversRequest) (*params.WaiverPage, error) {
	page, err := positiveInt("page", req.Page, 1)
	if err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	limit, err := positiveInt("limit", req.Limit, h.h.params.DefaultPageSize)
	if err != nil {
		return nil, errgo.Mask(err, errgo.Any)
	}
	if limit > h.h.params.MaxPageSize {
		limit = h.h.params.MaxPageSize
	}
	g := store.FilterGroup{
		SubjectType:       req.SubjectType,
		SubjectIdentifier: req.SubjectIdentifier,
		Testcase:          req.Testcase,
		Scenario:          req.Scenario,
		ProductVersion:    req.ProductVersion,
		Username:          req.Username,
		ProxiedBy:         req.ProxiedBy,
	}
	if req.Since != "" {
		g.Since, err = store.ParseTimeRange("since", req.Since)
		if err != nil {
			return nil, badRequest(err)
		}
	}
	q := &store.Query{
		IncludeObsolete: req.IncludeObsolete,
		Skip:            (page - 1) * limit,
		Limit:           limit,
	}
	if !g.IsEmpty() {
		q.Filters = []store.FilterGroup{g}
	}
	total, err := h.h.params.Store.CountWaivers(p.Context, q)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	pages := (total + limit - 1) / limit
	if page > 1 && page > pages {
		return &params.WaiverPage{
			Data: []params.Waiver{},
		}, nil
	}
	ws, err := h.h.params.Store.FindWaivers(p.Context, q)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	resp := &params.WaiverPage{
		Data:  waiversParams(ws),
		First: pageURL(p.Request, 1),
		Last:  pageURL(p.Request, pages),
	}
	if page > 1 {
		resp.Prev = pageURL(p.Request, page-1)
	}
	if page < pages {
		resp.Next = pageURL(p.Request, page+1)
	}
	return resp, nil
}

// GetWaiver returns the waiver with the requested id.
func (h *handler) GetWaiver(p httprequest.Params, req *params.GetWaiverRequest) (*params.Waiver, error) {
	w, err := h.h.params.Store.Waiver(p.Context, req.ID)
	if err != nil {
		if errgo.Cause(err) == store.ErrNotFound {
			return nil, errgo.WithCausef(nil, params.ErrNotFound, "Waiver not found")
		}
		return nil, errgo.Mask(err)
	}
	wp := waiverParams(w)
	return &wp, nil
}

// FilterWaivers returns all the waivers matching any of the requested
// filters.
func (h *handler) FilterWaivers(p httprequest.Params, req *params.FilterWaiversRequest) (*params.WaiverList, error) {
	groups := make([]store.FilterGroup, len(req.Body.Filters))
	for i, f := range req.Body.Filters {
		groups[i] = store.FilterGroup{
			SubjectType:       f.SubjectType,
			SubjectIdentifier: f.SubjectIdentifier,
			Testcase:          f.Testcase,
			Scenario:          f.Scenario,
			ProductVersion:    f.ProductVersion,
			Username:          f.Username,
			ProxiedBy:         f.ProxiedBy,
		}
		if f.Since == "" {
			continue
		}
		var err error
		groups[i].Since, err = store.ParseTimeRange("since", f.Since)
		if err != nil {
			return nil, badRequest(err)
		}
	}
	if err := store.ValidateFilters(groups); err != nil {
		return nil, badRequest(err)
	}
	return h.findAll(p.Context, &store.Query{
		Filters:         groups,
		IncludeObsolete: req.Body.IncludeObsolete,
	})
}

// WaiversBySubjectsAndTestcases returns the waivers matching any of the
// requested legacy subject and testcase pairs.
func (h *handler) WaiversBySubjectsAndTestcases(p httprequest.Params, req *params.WaiversBySubjectsAndTestcasesRequest) (*params.WaiverList, error) {
	common := store.FilterGroup{
		ProductVersion: req.Body.ProductVersion,
		Username:       req.Body.Username,
		ProxiedBy:      req.Body.ProxiedBy,
	}
	if req.Body.Since != "" {
		var err error
		common.Since, err = store.ParseTimeRange("since", req.Body.Since)
		if err != nil {
			return nil, badRequest(err)
		}
	}
	groups := []store.FilterGroup{common}
	if len(req.Body.Results) > 0 {
		groups = make([]store.FilterGroup, len(req.Body.Results))
		for i, r := range req.Body.Results {
			subjectType, subjectIdentifier, err := store.SubjectFromDict(r.Subject)
			if err != nil {
				return nil, badRequestf("Invalid subject: %s", err)
			}
			groups[i] = common
			groups[i].SubjectType = subjectType
			groups[i].SubjectIdentifier = subjectIdentifier
			groups[i].Testcase = r.Testcase
		}
	}
	return h.findAll(p.Context, &store.Query{
		Filters:         groups,
		IncludeObsolete: req.Body.IncludeObsolete,
	})
}

func (h *handler) findAll(ctx context.Context, q *store.Query) (*params.WaiverList, error) {
	ws, err := h.h.params.Store.FindWaivers(ctx, q)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	return &params.WaiverList{
		Data: waiversParams(ws),
	}, nil
}

// pageURL returns the URL of the given page of the listing requested
// by req.
func pageURL(req *http.Request, page int) *string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if proto := req.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := req.Host
	if fh := req.Header.Get("X-Forwarded-Host"); fh != "" {
		host = fh
	}
	query := req.URL.Query()
	query.Set("page", strconv.Itoa(page))
	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     req.URL.Path,
		RawQuery: query.Encode(),
	}
	s := u.String()
	return &s
}

// positiveInt parses the value of the named query parameter. An empty
// value gives def.
func positiveInt(name, value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, badRequestf("%s: must be a positive integer", name)
	}
	return n, nil
}

func waiverParams(w *store.Waiver) params.Waiver {
	wp := params.Waiver{
		ID:                w.ID,
		SubjectType:       w.SubjectType,
		SubjectIdentifier: w.SubjectIdentifier,
		Subject:           store.SubjectToDict(w.SubjectType, w.SubjectIdentifier),
		Testcase:          w.Testcase,
		Username:          w.Username,
		ProductVersion:    w.ProductVersion,
		Waived:            w.Waived,
		Comment:           w.Comment,
		Timestamp:         params.Time{Time: w.Timestamp},
	}
	if w.Scenario != "" {
		scenario := w.Scenario
		wp.Scenario = &scenario
	}
	if w.ProxiedBy != "" {
		proxiedBy := w.ProxiedBy
		wp.ProxiedBy = &proxiedBy
	}
	return wp
}

func waiversParams(ws []store.Waiver) []params.Waiver {
	wps := make([]params.Waiver, len(ws))
	for i := range ws {
		wps[i] = waiverParams(&ws[i])
	}
	return wps
}

func badRequestf(f string, a ...interface{}) error {
	err := errgo.WithCausef(nil, params.ErrBadRequest, f, a...)
	err.(*errgo.Err).SetLocation(1)
	return err
}

// badRequest returns an error with a cause of params.ErrBadRequest and
// the message of err.
func badRequest(err error) error {
	err1 := errgo.WithCausef(nil, params.ErrBadRequest, "%s", err.Error())
	err1.(*errgo.Err).SetLocation(1)
	return err1
}
