// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package clicmd_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestPermissions(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	stdout := f.CheckSuccess(c, "permissions")
	c.Assert(stdout, qt.Equals, `
- name: dist
  testcases:
  - dist.*
  users:
  - alice
`[1:])
}

func TestPermissionsForTestcase(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	stdout := f.CheckSuccess(c, "permissions", "--testcase", "dist.rpmdeplint", "--format", "json")
	c.Assert(stdout, qt.Equals, `[{"name":"dist","testcases":["dist.*"],"users":["alice"]}]`+"\n")

	stdout = f.CheckSuccess(c, "permissions", "--testcase", "kernel-qe.sanity", "--format", "json")
	c.Assert(stdout, qt.Equals, "[]\n")
}
