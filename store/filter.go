// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package store

import (
	"strings"
	"time"

	errgo "gopkg.in/errgo.v1"
)

// A FilterGroup holds a conjunction of constraints on waivers. Empty
// fields do not constrain the match.
type FilterGroup struct {
	SubjectType       string
	SubjectIdentifier string
	Testcase          string
	Scenario          string
	ProductVersion    string
	Username          string
	ProxiedBy         string
	Since             TimeRange
}

// IsEmpty reports whether the group places no constraint at all.
func (g *FilterGroup) IsEmpty() bool {
	return *g == FilterGroup{}
}

// Match reports whether w satisfies every constraint in the group.
func (g *FilterGroup) Match(w *Waiver) bool {
	return matchField(g.SubjectType, w.SubjectType) &&
		matchField(g.SubjectIdentifier, w.SubjectIdentifier) &&
		matchField(g.Testcase, w.Testcase) &&
		matchField(g.Scenario, w.Scenario) &&
		matchField(g.ProductVersion, w.ProductVersion) &&
		matchField(g.Username, w.Username) &&
		matchField(g.ProxiedBy, w.ProxiedBy) &&
		g.Since.Contains(w.Timestamp)
}

func matchField(want, got string) bool {
	return want == "" || want == got
}

// ValidateFilters checks that groups can be used as an explicit filter:
// there must be at least one group and every group must constrain
// something.
func ValidateFilters(groups []FilterGroup) error {
	if len(groups) == 0 {
		return errgo.WithCausef(nil, ErrBadFilter, "filters: Must be a list of non-empty dictionaries")
	}
	for i := range groups {
		if groups[i].IsEmpty() {
			return errgo.WithCausef(nil, ErrBadFilter, "filters: Must be a list of non-empty dictionaries")
		}
	}
	return nil
}

// A Query selects waivers from a store.
type Query struct {
	// Filters holds the filter groups. A waiver matches when it
	// matches any group. No groups means no restriction.
	Filters []FilterGroup

	// IncludeObsolete selects obsolete waivers as well as current
	// ones.
	IncludeObsolete bool

	// Skip holds the number of matching waivers to skip.
	Skip int

	// Limit, if greater than zero, holds the maximum number of
	// waivers to return.
	Limit int
}

// Groups returns the filter groups that need to be applied. It returns
// nil when the filters do not restrict the result, which is also the
// case when any group is empty.
func (q *Query) Groups() []FilterGroup {
	for i := range q.Filters {
		if q.Filters[i].IsEmpty() {
			return nil
		}
	}
	return q.Filters
}

// Match reports whether w matches the query filters. Obsolescence is
// not considered.
func (q *Query) Match(w *Waiver) bool {
	groups := q.Groups()
	if len(groups) == 0 {
		return true
	}
	for i := range groups {
		if groups[i].Match(w) {
			return true
		}
	}
	return false
}

// TimeRange is a closed time interval. A zero bound leaves that side of
// the range open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether the range is unbounded.
func (r TimeRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t is within the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// timeLayouts holds the accepted timestamp formats. Timestamps without
// a zone are in UTC.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses an ISO 8601 timestamp.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errgo.Newf("invalid timestamp %q", s)
}

// ParseTimeRange parses the value of the named field. The value holds
// either a single timestamp, matching times at or after it, or two
// comma separated timestamps, matching times between them inclusive.
// Either side of the comma may be empty. The returned error has a
// cause of ErrBadTimeRange and names the field and the offending
// timestamp.
func ParseTimeRange(field, s string) (TimeRange, error) {
	from, to := s, ""
	if i := strings.Index(s, ","); i >= 0 {
		from, to = s[:i], s[i+1:]
	}
	var r TimeRange
	var err error
	if from != "" {
		r.From, err = ParseTime(from)
		if err != nil {
			return TimeRange{}, errgo.WithCausef(nil, ErrBadTimeRange, "%s: %s", field, err)
		}
	}
	if to != "" {
		r.To, err = ParseTime(to)
		if err != nil {
			return TimeRange{}, errgo.WithCausef(nil, ErrBadTimeRange, "%s: %s", field, err)
		}
	}
	return r, nil
}
