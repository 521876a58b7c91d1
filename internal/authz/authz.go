// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package authz decides whether a user may waive the results of a test
// case.
package authz

import (
	"context"
	"fmt"

	"github.com/juju/loggo"
	"golang.org/x/net/trace"
	"gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/params"
	"github.com/release-engineering/waiverdb/permission"
)

var logger = loggo.GetLogger("waiverdb.internal.authz")

// A Directory resolves the groups a user belongs to. The returned
// groups are the union of every search made. If wanted is not nil the
// directory may stop searching as soon as it has found a group for
// which wanted returns true.
type Directory interface {
	Groups(ctx context.Context, username string, wanted func(group string) bool) ([]string, error)
}

// VerifyAuthorization returns nil if user may waive results of
// testcase under the given rules. An empty rule set places no
// restriction on anyone. Group rules are only checked when dir is not
// nil.
//
// A denial has a cause of params.ErrForbidden. Errors from the
// directory are returned unchanged.
func VerifyAuthorization(ctx context.Context, user, testcase string, rules []permission.Rule, dir Directory) error {
	if len(rules) == 0 {
		return nil
	}
	allowed := make(map[string]bool)
	for _, r := range permission.Match(testcase, rules) {
		for _, u := range r.Users {
			if u == user {
				return nil
			}
		}
		for _, g := range r.Groups {
			allowed[g] = true
		}
	}
	detail := ""
	if dir != nil {
		groups, err := dir.Groups(ctx, user, func(g string) bool {
			return allowed[g]
		})
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		if t, ok := trace.FromContext(ctx); ok {
			t.LazyPrintf("groups of %s: %v", user, groups)
		}
		for _, g := range groups {
			if allowed[g] {
				logger.Debugf("user %q authorized for %q by group %q", user, testcase, g)
				return nil
			}
		}
		if len(groups) == 0 {
			detail = "; failed to find the user in LDAP"
		}
	}
	return errgo.WithCausef(nil, params.ErrForbidden, "%s", denial(user, testcase)+detail)
}

func denial(user, testcase string) string {
	return fmt.Sprintf("User %s is not authorized to submit results for the test case %s", user, testcase)
}
