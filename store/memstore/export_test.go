// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package memstore

import (
	"github.com/juju/clock"

	"github.com/release-engineering/waiverdb/store"
)

// NewStoreWithClock returns a store that timestamps waivers using the
// given clock.
func NewStoreWithClock(clk clock.Clock) store.Store {
	return newStore(clk)
}
