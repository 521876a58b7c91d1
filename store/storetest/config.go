// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package storetest

import (
	"context"

	qt "github.com/frankban/quicktest"
	"gopkg.in/yaml.v2"

	"github.com/release-engineering/waiverdb/store"
)

// TestUnmarshal checks that the given configuration YAML, which must
// hold a "storage" key, creates a usable backend.
func TestUnmarshal(c *qt.C, configYAML string) {
	ctx := context.Background()
	var cfg struct {
		Storage *store.Config `yaml:"storage"`
	}
	err := yaml.Unmarshal([]byte(configYAML), &cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Storage, qt.Not(qt.IsNil))

	backend, err := cfg.Storage.NewBackend()
	c.Assert(err, qt.IsNil)
	defer backend.Close()

	// Sanity check that the backend can actually be used.
	s := backend.Store()
	c.Assert(s.Ping(ctx), qt.IsNil)
	w := newWaiver(nil)
	err = s.AddWaivers(ctx, []*store.Waiver{w})
	c.Assert(err, qt.IsNil)
	got, err := s.Waiver(ctx, w.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, w)
}
