// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package store_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	errgo "gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/store"
)

func TestNotFoundError(t *testing.T) {
	c := qt.New(t)
	err := store.NotFoundError(1234)
	c.Assert(errgo.Cause(err), qt.Equals, store.ErrNotFound)
	c.Assert(err, qt.ErrorMatches, `waiver 1234 not found`)
}
