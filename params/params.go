// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package params defines the wire format of the WaiverDB API.
package params

import (
	"encoding/json"
	"strings"
	"time"

	"gopkg.in/errgo.v1"
	"gopkg.in/httprequest.v1"
)

// TimeFormat is the format used for timestamps in API responses. It
// holds the UTC time with microsecond precision and no zone suffix.
const TimeFormat = "2006-01-02T15:04:05.000000"

// Time is a time.Time that is marshaled using TimeFormat.
type Time struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(TimeFormat))
}

// UnmarshalJSON implements json.Unmarshaler. It accepts TimeFormat as
// well as RFC 3339 timestamps.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errgo.Mask(err)
	}
	t1, err := time.Parse(TimeFormat, s)
	if err != nil {
		t1, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return errgo.Newf("invalid timestamp %q", s)
		}
	}
	t.Time = t1.UTC()
	return nil
}

// Waiver is the representation of a stored waiver.
type Waiver struct {
	ID                int64             `json:"id"`
	SubjectType       string            `json:"subject_type"`
	SubjectIdentifier string            `json:"subject_identifier"`
	Subject           map[string]string `json:"subject"`
	Testcase          string            `json:"testcase"`
	Scenario          *string           `json:"scenario"`
	Username          string            `json:"username"`
	ProxiedBy         *string           `json:"proxied_by"`
	ProductVersion    string            `json:"product_version"`
	Waived            bool              `json:"waived"`
	Comment           string            `json:"comment"`
	Timestamp         Time              `json:"timestamp"`
}

// CreateWaiver holds the parameters of a single waiver creation
// request. The subject can be given either as SubjectType and
// SubjectIdentifier, as the legacy Subject dictionary, or implicitly
// via ResultID.
type CreateWaiver struct {
	SubjectType       string            `json:"subject_type,omitempty"`
	SubjectIdentifier string            `json:"subject_identifier,omitempty"`
	Subject           map[string]string `json:"subject,omitempty"`
	ResultID          int64             `json:"result_id,omitempty"`
	Testcase          string            `json:"testcase,omitempty"`
	Scenario          string            `json:"scenario,omitempty"`
	Waived            *bool             `json:"waived,omitempty"`
	ProductVersion    string            `json:"product_version,omitempty"`
	Comment           string            `json:"comment,omitempty"`
	Username          string            `json:"username,omitempty"`
}

// CreateWaiversRequest describes the waiver creation endpoint. The
// body holds either a single CreateWaiver object or a list of them;
// a list is stored atomically.
type CreateWaiversRequest struct {
	httprequest.Route `httprequest:"POST /api/v1.0/waivers/"`
	Body              json.RawMessage `httprequest:",body"`
}

// IsBatch reports whether the request body holds a list of waivers.
func (r *CreateWaiversRequest) IsBatch() bool {
	return strings.HasPrefix(strings.TrimSpace(string(r.Body)), "[")
}

// ListWaiversRequest describes the waiver listing endpoint.
type ListWaiversRequest struct {
	httprequest.Route `httprequest:"GET /api/v1.0/waivers/"`
	SubjectType       string `httprequest:"subject_type,form,omitempty"`
	SubjectIdentifier string `httprequest:"subject_identifier,form,omitempty"`
	Testcase          string `httprequest:"testcase,form,omitempty"`
	Scenario          string `httprequest:"scenario,form,omitempty"`
	ProductVersion    string `httprequest:"product_version,form,omitempty"`
	Username          string `httprequest:"username,form,omitempty"`
	ProxiedBy         string `httprequest:"proxied_by,form,omitempty"`
	Since             string `httprequest:"since,form,omitempty"`
	IncludeObsolete   bool   `httprequest:"include_obsolete,form,omitempty"`
	Page              string `httprequest:"page,form,omitempty"`
	Limit             string `httprequest:"limit,form,omitempty"`
}

// WaiverPage holds one page of a waiver listing. The links are nil
// when there is no such page.
type WaiverPage struct {
	Data  []Waiver `json:"data"`
	Prev  *string  `json:"prev"`
	Next  *string  `json:"next"`
	First *string  `json:"first"`
	Last  *string  `json:"last"`
}

// GetWaiverRequest describes the single waiver endpoint.
type GetWaiverRequest struct {
	httprequest.Route `httprequest:"GET /api/v1.0/waivers/:id"`
	ID                int64 `httprequest:"id,path"`
}

// WaiverFilter holds a conjunction of constraints. An empty field
// does not constrain the result.
type WaiverFilter struct {
	SubjectType       string `json:"subject_type,omitempty"`
	SubjectIdentifier string `json:"subject_identifier,omitempty"`
	Testcase          string `json:"testcase,omitempty"`
	Scenario          string `json:"scenario,omitempty"`
	ProductVersion    string `json:"product_version,omitempty"`
	Username          string `json:"username,omitempty"`
	ProxiedBy         string `json:"proxied_by,omitempty"`
	Since             string `json:"since,omitempty"`
}

// FilterWaiversRequest describes the bulk filter endpoint. A waiver is
// returned when it matches any of the filters.
type FilterWaiversRequest struct {
	httprequest.Route `httprequest:"POST /api/v1.0/waivers/+filtered"`
	Body              FilterWaivers `httprequest:",body"`
}

// FilterWaivers holds the body of a FilterWaiversRequest.
type FilterWaivers struct {
	Filters         []WaiverFilter `json:"filters"`
	IncludeObsolete bool           `json:"include_obsolete,omitempty"`
}

// SubjectTestcase identifies a test result by its legacy subject and
// testcase name.
type SubjectTestcase struct {
	Subject  map[string]string `json:"subject"`
	Testcase string            `json:"testcase,omitempty"`
}

// WaiversBySubjectsAndTestcasesRequest describes the deprecated
// endpoint for querying waivers by legacy subjects.
type WaiversBySubjectsAndTestcasesRequest struct {
	httprequest.Route `httprequest:"POST /api/v1.0/waivers/+by-subjects-and-testcases"`
	Body              WaiversBySubjectsAndTestcases `httprequest:",body"`
}

// WaiversBySubjectsAndTestcases holds the body of a
// WaiversBySubjectsAndTestcasesRequest.
type WaiversBySubjectsAndTestcases struct {
	Results         []SubjectTestcase `json:"results,omitempty"`
	ProductVersion  string            `json:"product_version,omitempty"`
	Username        string            `json:"username,omitempty"`
	ProxiedBy       string            `json:"proxied_by,omitempty"`
	Since           string            `json:"since,omitempty"`
	IncludeObsolete bool              `json:"include_obsolete,omitempty"`
}

// WaiverList holds an unpaginated list of waivers.
type WaiverList struct {
	Data []Waiver `json:"data"`
}

// AboutRequest describes the about endpoint.
type AboutRequest struct {
	httprequest.Route `httprequest:"GET /api/v1.0/about"`
}

// AboutResponse holds information about the running server.
type AboutResponse struct {
	Version     string   `json:"version"`
	AuthMethod  string   `json:"auth_method"`
	AuthMethods []string `json:"auth_methods"`
}

// ConfigRequest describes the config endpoint.
type ConfigRequest struct {
	httprequest.Route `httprequest:"GET /api/v1.0/config"`
}

// PermissionRule is the representation of a permission rule. Exactly
// one of Testcases and TestcaseRegexPattern is set.
type PermissionRule struct {
	Name                 string   `json:"name"`
	Maintainers          []string `json:"maintainers"`
	Testcases            []string `json:"testcases,omitempty"`
	TestcasesIgnore      []string `json:"testcases_ignore,omitempty"`
	TestcaseRegexPattern string   `json:"_testcase_regex_pattern,omitempty"`
	Users                []string `json:"users"`
	Groups               []string `json:"groups"`
}

// PermissionMappingEntry is an entry in the deprecated permission
// mapping, keyed by testcase regular expression.
type PermissionMappingEntry struct {
	Groups     []string `json:"groups"`
	Users      []string `json:"users"`
	Maintainer string   `json:"maintainer,omitempty"`
}

// ConfigResponse holds the publicly visible server configuration.
type ConfigResponse struct {
	PermissionMapping map[string]PermissionMappingEntry `json:"permission_mapping"`
	Permissions       []PermissionRule                  `json:"permissions"`
	Superusers        []string                          `json:"superusers"`
}

// PermissionsRequest describes the permissions endpoint. When Testcase
// is set only the rules applying to it are returned.
type PermissionsRequest struct {
	httprequest.Route `httprequest:"GET /api/v1.0/permissions"`
	Testcase          string `httprequest:"testcase,form,omitempty"`
}
