// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package permission holds the permission rules that decide which
// users may waive which test cases.
package permission

import (
	"regexp"

	"github.com/gobwas/glob"
	"github.com/juju/loggo"
	"gopkg.in/errgo.v1"
	"gopkg.in/yaml.v2"

	"github.com/release-engineering/waiverdb/params"
)

var logger = loggo.GetLogger("waiverdb.permission")

// A Matcher reports whether a test case name is covered by a rule.
type Matcher interface {
	Match(testcase string) bool
}

// Globs matches test cases against a list of shell-style patterns. A
// test case matches when it matches any pattern. Matching is case
// sensitive and "*" also matches "/" and ".". Braces denote
// alternatives ("{a,b}"), so a literal brace must be escaped.
type Globs []glob.Glob

// Match implements Matcher.Match.
func (g Globs) Match(testcase string) bool {
	for _, p := range g {
		if p.Match(testcase) {
			return true
		}
	}
	return false
}

// CompileGlobs compiles the given shell-style patterns.
func CompileGlobs(patterns []string) (Globs, error) {
	globs := make(Globs, len(patterns))
	for i, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errgo.Notef(err, "invalid pattern %q", p)
		}
		globs[i] = g
	}
	return globs, nil
}

// Regex matches test cases that contain a match of a regular
// expression anywhere in their name.
type Regex struct {
	re *regexp.Regexp
}

// CompileRegex compiles the given regular expression.
func CompileRegex(pattern string) (Regex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Regex{}, errgo.Notef(err, "invalid regular expression %q", pattern)
	}
	return Regex{re}, nil
}

// Match implements Matcher.Match.
func (r Regex) Match(testcase string) bool {
	return r.re.MatchString(testcase)
}

// never is a Matcher that matches nothing.
type never struct{}

func (never) Match(string) bool {
	return false
}

// Rule is a permission rule. A rule applies to the test cases matching
// Testcases (or TestcaseRegexPattern for rules derived from the legacy
// permission mapping) that do not match TestcasesIgnore. Users and
// members of Groups are allowed to waive results of those test cases.
//
// The regular expression of a rule derived from the permission mapping
// is used even when it is empty, in which case the rule applies to
// every test case.
type Rule struct {
	Name                 string   `yaml:"name"`
	Maintainers          []string `yaml:"maintainers,omitempty"`
	Testcases            []string `yaml:"testcases,omitempty"`
	TestcasesIgnore      []string `yaml:"testcases_ignore,omitempty"`
	TestcaseRegexPattern string   `yaml:"_testcase_regex_pattern,omitempty"`
	Users                []string `yaml:"users,omitempty"`
	Groups               []string `yaml:"groups,omitempty"`

	matcher Matcher
	ignore  Matcher

	// legacy is set for rules converted from the permission mapping.
	legacy bool
}

// UnmarshalYAML implements yaml.Unmarshaler by unmarshaling and
// compiling the rule.
func (r *Rule) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plainRule Rule
	var pr plainRule
	if err := unmarshal(&pr); err != nil {
		return errgo.Mask(err)
	}
	*r = Rule(pr)
	if err := r.Compile(); err != nil {
		return errgo.Notef(err, "permission %q", r.Name)
	}
	return nil
}

// Compile prepares the rule's matchers. Compile must be called before
// the rule is shared between goroutines.
func (r *Rule) Compile() error {
	m, err := r.compileMatcher()
	if err != nil {
		return errgo.Mask(err)
	}
	ignore, err := CompileGlobs(r.TestcasesIgnore)
	if err != nil {
		return errgo.Mask(err)
	}
	r.matcher = m
	r.ignore = ignore
	return nil
}

func (r *Rule) compileMatcher() (Matcher, error) {
	switch {
	case r.Testcases != nil:
		return CompileGlobs(r.Testcases)
	case r.TestcaseRegexPattern != "" || r.legacy:
		return CompileRegex(r.TestcaseRegexPattern)
	}
	return never{}, nil
}

// Applies reports whether the rule applies to the given test case.
func (r *Rule) Applies(testcase string) bool {
	if r.matcher == nil {
		// Uncompiled rules are compiled on demand. A rule that does
		// not compile never applies.
		rc := *r
		if err := rc.Compile(); err != nil {
			logger.Warningf("ignoring permission %q: %s", r.Name, err)
			return false
		}
		r = &rc
	}
	if r.ignore.Match(testcase) {
		return false
	}
	return r.matcher.Match(testcase)
}

// Params returns the API representation of the rule.
func (r *Rule) Params() params.PermissionRule {
	return params.PermissionRule{
		Name:                 r.Name,
		Maintainers:          nonNil(r.Maintainers),
		Testcases:            r.Testcases,
		TestcasesIgnore:      r.TestcasesIgnore,
		TestcaseRegexPattern: r.TestcaseRegexPattern,
		Users:                nonNil(r.Users),
		Groups:               nonNil(r.Groups),
	}
}

// MappingEntry is an entry in the deprecated permission mapping.
type MappingEntry struct {
	Pattern    string   `yaml:"-"`
	Groups     []string `yaml:"groups,omitempty"`
	Users      []string `yaml:"users,omitempty"`
	Maintainer string   `yaml:"maintainer,omitempty"`
}

// Mapping is the deprecated permission configuration: a mapping from
// test case regular expressions to the users and groups allowed to
// waive them. Entries keep the order of the configuration file.
type Mapping []MappingEntry

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Mapping) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var keys yaml.MapSlice
	if err := unmarshal(&keys); err != nil {
		return errgo.Mask(err)
	}
	var values map[string]MappingEntry
	if err := unmarshal(&values); err != nil {
		return errgo.Mask(err)
	}
	entries := make(Mapping, 0, len(keys))
	for _, item := range keys {
		pattern, ok := item.Key.(string)
		if !ok {
			return errgo.Newf("invalid permission mapping key %v", item.Key)
		}
		e := values[pattern]
		e.Pattern = pattern
		entries = append(entries, e)
	}
	*m = entries
	return nil
}

// Params returns the API representation of the mapping.
func (m Mapping) Params() map[string]params.PermissionMappingEntry {
	pm := make(map[string]params.PermissionMappingEntry, len(m))
	for _, e := range m {
		pm[e.Pattern] = params.PermissionMappingEntry{
			Groups:     nonNil(e.Groups),
			Users:      nonNil(e.Users),
			Maintainer: e.Maintainer,
		}
	}
	return pm
}

// Permissions returns the canonical list of permission rules. The
// rule list takes precedence; when it is empty the legacy mapping is
// converted instead, one rule per entry. All returned rules are
// compiled.
func Permissions(rules []Rule, mapping Mapping) ([]Rule, error) {
	if len(rules) > 0 {
		out := make([]Rule, len(rules))
		for i := range rules {
			out[i] = rules[i]
			if err := out[i].Compile(); err != nil {
				return nil, errgo.Notef(err, "permission %q", rules[i].Name)
			}
		}
		return out, nil
	}
	out := make([]Rule, 0, len(mapping))
	for _, e := range mapping {
		r := Rule{
			Name:                 e.Pattern,
			TestcaseRegexPattern: e.Pattern,
			Maintainers:          []string{},
			Users:                nonNil(e.Users),
			Groups:               nonNil(e.Groups),
			legacy:               true,
		}
		if e.Maintainer != "" {
			r.Maintainers = []string{e.Maintainer}
		}
		if err := r.Compile(); err != nil {
			return nil, errgo.Notef(err, "permission mapping %q", e.Pattern)
		}
		out = append(out, r)
	}
	return out, nil
}

// Match returns the rules that apply to the given test case, in the
// order they are given.
func Match(testcase string, rules []Rule) []Rule {
	var matched []Rule
	for i := range rules {
		if rules[i].Applies(testcase) {
			matched = append(matched, rules[i])
		}
	}
	return matched
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
