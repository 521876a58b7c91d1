// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package store

import (
	"fmt"
	"sort"
	"strings"

	errgo "gopkg.in/errgo.v1"
)

// Subject types with special handling.
const (
	KojiBuild = "koji_build"
	BrewBuild = "brew-build"
	Compose   = "compose"
)

// NormalizeSubjectType returns the canonical name of a subject type.
// "brew-build" is an alias for "koji_build".
func NormalizeSubjectType(subjectType string) string {
	if subjectType == BrewBuild {
		return KojiBuild
	}
	return subjectType
}

// SubjectFromDict converts a subject in the dictionary format accepted
// by old clients to a subject type and identifier.
func SubjectFromDict(subject map[string]string) (subjectType, subjectIdentifier string, err error) {
	typ, item := subject["type"], subject["item"]
	switch {
	case (typ == KojiBuild || typ == BrewBuild) && item != "":
		return KojiBuild, item, nil
	case subject["original_spec_nvr"] != "":
		return KojiBuild, subject["original_spec_nvr"], nil
	case subject["productmd.compose.id"] != "":
		return Compose, subject["productmd.compose.id"], nil
	case typ != "" && item != "":
		return typ, item, nil
	}
	return "", "", errgo.Newf("subject type should be a non-empty string, actual value is: %s", formatDict(subject))
}

// SubjectToDict is the inverse of SubjectFromDict. It is used to
// include the legacy subject format in responses.
func SubjectToDict(subjectType, subjectIdentifier string) map[string]string {
	if subjectType == Compose {
		return map[string]string{"productmd.compose.id": subjectIdentifier}
	}
	return map[string]string{
		"type": subjectType,
		"item": subjectIdentifier,
	}
}

func formatDict(d map[string]string) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%q: %q", k, d[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
