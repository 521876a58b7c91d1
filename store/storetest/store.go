// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package storetest provides useful tools for testing Store
// implementations.
package storetest

import (
	"context"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/frankban/quicktest/qtsuite"
	errgo "gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/store"
)

// epoch is the timestamp of the first waiver created by newWaiver.
// Timestamps have microsecond precision so that they survive a round
// trip through every backend.
var epoch = time.Date(2017, 3, 16, 13, 40, 5, 123456000, time.UTC)

// newWaiver returns a new valid waiver, modified by f if it is not
// nil.
func newWaiver(f func(w *store.Waiver)) *store.Waiver {
	w := &store.Waiver{
		SubjectType:       "koji_build",
		SubjectIdentifier: "glibc-1.0-1.fc27",
		Testcase:          "dist.rpmdeplint",
		Username:          "alice",
		ProductVersion:    "fedora-27",
		Waived:            true,
		Comment:           "it broke",
		Timestamp:         epoch,
	}
	if f != nil {
		f(w)
	}
	return w
}

// storeSuite contains a set of tests for Store implementations.
type storeSuite struct {
	newStore func(c *qt.C) store.Store

	Store store.Store
	ctx   context.Context
}

// TestStore runs a suite of tests on the given store implementation.
// Each call to newStore must return an empty store.
func TestStore(c *qt.C, newStore func(c *qt.C) store.Store) {
	qtsuite.Run(c, &storeSuite{
		newStore: newStore,
	})
}

func (s *storeSuite) Init(c *qt.C) {
	s.Store = s.newStore(c)
	s.ctx = context.Background()
}

func (s *storeSuite) add(c *qt.C, ws ...*store.Waiver) {
	err := s.Store.AddWaivers(s.ctx, ws)
	c.Assert(err, qt.IsNil)
}

func (s *storeSuite) TestPing(c *qt.C) {
	c.Assert(s.Store.Ping(s.ctx), qt.IsNil)
}

func (s *storeSuite) TestAddWaiver(c *qt.C) {
	w := newWaiver(func(w *store.Waiver) {
		w.Scenario = "x86_64"
		w.ProxiedBy = "bob"
	})
	s.add(c, w)
	c.Assert(w.ID, qt.Not(qt.Equals), int64(0))

	got, err := s.Store.Waiver(s.ctx, w.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, w)
}

func (s *storeSuite) TestAddWaiverNullFields(c *qt.C) {
	w := newWaiver(func(w *store.Waiver) {
		w.Comment = ""
		w.Waived = false
	})
	s.add(c, w)
	got, err := s.Store.Waiver(s.ctx, w.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Scenario, qt.Equals, "")
	c.Assert(got.ProxiedBy, qt.Equals, "")
	c.Assert(got.Comment, qt.Equals, "")
	c.Assert(got.Waived, qt.Equals, false)
}

func (s *storeSuite) TestAddWaiversAssignsIncreasingIDs(c *qt.C) {
	ws := []*store.Waiver{newWaiver(nil), newWaiver(nil), newWaiver(nil)}
	s.add(c, ws...)
	c.Assert(ws[1].ID > ws[0].ID, qt.Equals, true)
	c.Assert(ws[2].ID > ws[1].ID, qt.Equals, true)

	w := newWaiver(nil)
	s.add(c, w)
	c.Assert(w.ID > ws[2].ID, qt.Equals, true)
}

func (s *storeSuite) TestAddWaiversIsAtomic(c *qt.C) {
	ws := []*store.Waiver{
		newWaiver(nil),
		newWaiver(func(w *store.Waiver) { w.Testcase = "" }),
	}
	err := s.Store.AddWaivers(s.ctx, ws)
	c.Assert(err, qt.ErrorMatches, `missing testcase`)
	c.Assert(errgo.Cause(err), qt.Equals, store.ErrInvalidWaiver)

	n, err := s.Store.CountWaivers(s.ctx, &store.Query{IncludeObsolete: true})
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
}

func (s *storeSuite) TestWaiverNotFound(c *qt.C) {
	_, err := s.Store.Waiver(s.ctx, 12345)
	c.Assert(err, qt.ErrorMatches, `waiver 12345 not found`)
	c.Assert(errgo.Cause(err), qt.Equals, store.ErrNotFound)
}

func (s *storeSuite) TestObsoleteWaiversExcluded(c *qt.C) {
	first := newWaiver(nil)
	s.add(c, first)
	second := newWaiver(func(w *store.Waiver) {
		w.Waived = false
		w.Timestamp = epoch.Add(time.Second)
	})
	s.add(c, second)

	ws, err := s.Store.FindWaivers(s.ctx, &store.Query{})
	c.Assert(err, qt.IsNil)
	c.Assert(ids(ws), qt.DeepEquals, []int64{second.ID})
	c.Assert(ws[0].Waived, qt.Equals, false)

	ws, err = s.Store.FindWaivers(s.ctx, &store.Query{IncludeObsolete: true})
	c.Assert(err, qt.IsNil)
	c.Assert(ids(ws), qt.DeepEquals, []int64{second.ID, first.ID})
}

func (s *storeSuite) TestObsolescenceKey(c *qt.C) {
	ws := []*store.Waiver{
		newWaiver(nil),
		newWaiver(func(w *store.Waiver) { w.Scenario = "x86_64" }),
		newWaiver(func(w *store.Waiver) { w.Username = "bob" }),
		newWaiver(func(w *store.Waiver) { w.ProductVersion = "fedora-28" }),
		newWaiver(func(w *store.Waiver) { w.Testcase = "dist.rpmlint" }),
		newWaiver(func(w *store.Waiver) { w.SubjectIdentifier = "glibc-1.0-2.fc27" }),
		newWaiver(func(w *store.Waiver) { w.SubjectType = "bodhi_update" }),
		// Only the proxy differs from the first waiver, so this
		// supersedes it.
		newWaiver(func(w *store.Waiver) { w.ProxiedBy = "carol" }),
	}
	s.add(c, ws...)
	n, err := s.Store.CountWaivers(s.ctx, &store.Query{})
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 7)
	ws1, err := s.Store.FindWaivers(s.ctx, &store.Query{})
	c.Assert(err, qt.IsNil)
	for _, w := range ws1 {
		c.Assert(w.ID, qt.Not(qt.Equals), ws[0].ID)
	}
}

func (s *storeSuite) TestObsolescenceIsGlobal(c *qt.C) {
	// A waiver is obsolete even when the waiver that supersedes it
	// does not match the filter.
	first := newWaiver(nil)
	s.add(c, first)
	second := newWaiver(func(w *store.Waiver) {
		w.Timestamp = epoch.Add(time.Hour)
	})
	s.add(c, second)
	ws, err := s.Store.FindWaivers(s.ctx, &store.Query{
		Filters: []store.FilterGroup{{
			Since: store.TimeRange{To: epoch},
		}},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(ws, qt.HasLen, 0)
}

func (s *storeSuite) TestFindWaiversOrder(c *qt.C) {
	ws := []*store.Waiver{
		newWaiver(func(w *store.Waiver) { w.Testcase = "t1"; w.Timestamp = epoch.Add(2 * time.Second) }),
		newWaiver(func(w *store.Waiver) { w.Testcase = "t2"; w.Timestamp = epoch }),
		newWaiver(func(w *store.Waiver) { w.Testcase = "t3"; w.Timestamp = epoch.Add(time.Second) }),
		newWaiver(func(w *store.Waiver) { w.Testcase = "t4"; w.Timestamp = epoch.Add(time.Second) }),
	}
	s.add(c, ws...)
	found, err := s.Store.FindWaivers(s.ctx, &store.Query{})
	c.Assert(err, qt.IsNil)
	c.Assert(ids(found), qt.DeepEquals, []int64{ws[0].ID, ws[3].ID, ws[2].ID, ws[1].ID})
}

var findWaiversTests = []struct {
	about   string
	filters []store.FilterGroup
	expect  []string
}{{
	about:  "no filters",
	expect: []string{"w6", "w5", "w4", "w3", "w2", "w1"},
}, {
	about: "single field",
	filters: []store.FilterGroup{{
		SubjectType: "compose",
	}},
	expect: []string{"w4", "w3"},
}, {
	about: "fields are combined",
	filters: []store.FilterGroup{{
		SubjectType: "compose",
		Testcase:    "compose.install",
	}},
	expect: []string{"w3"},
}, {
	about: "groups are alternatives",
	filters: []store.FilterGroup{{
		SubjectType: "compose",
		Testcase:    "compose.install",
	}, {
		Username: "bob",
	}},
	expect: []string{"w5", "w3"},
}, {
	about: "empty group matches everything",
	filters: []store.FilterGroup{{
		Username: "bob",
	}, {}},
	expect: []string{"w6", "w5", "w4", "w3", "w2", "w1"},
}, {
	about: "scenario",
	filters: []store.FilterGroup{{
		Scenario: "x86_64",
	}},
	expect: []string{"w2"},
}, {
	about: "proxied by",
	filters: []store.FilterGroup{{
		ProxiedBy: "carol",
	}},
	expect: []string{"w6"},
}, {
	about: "product version",
	filters: []store.FilterGroup{{
		ProductVersion: "fedora-28",
	}},
	expect: []string{"w4"},
}, {
	about: "subject identifier",
	filters: []store.FilterGroup{{
		SubjectIdentifier: "glibc-1.0-1.fc27",
	}},
	expect: []string{"w6", "w5", "w2", "w1"},
}, {
	about: "since",
	filters: []store.FilterGroup{{
		Since: store.TimeRange{From: epoch.Add(3 * time.Minute)},
	}},
	expect: []string{"w6", "w5", "w4", "w3"},
}, {
	about: "time range is inclusive",
	filters: []store.FilterGroup{{
		Since: store.TimeRange{
			From: epoch.Add(time.Minute),
			To:   epoch.Add(3 * time.Minute),
		},
	}},
	expect: []string{"w3", "w2"},
}, {
	about: "no match",
	filters: []store.FilterGroup{{
		Testcase: "nothing",
	}},
}}

func (s *storeSuite) TestFindWaivers(c *qt.C) {
	names := make(map[int64]string)
	for i, w := range []*store.Waiver{
		newWaiver(nil),
		newWaiver(func(w *store.Waiver) {
			w.Scenario = "x86_64"
			w.Timestamp = epoch.Add(time.Minute)
		}),
		newWaiver(func(w *store.Waiver) {
			w.SubjectType = "compose"
			w.SubjectIdentifier = "Fedora-9000-19700101.n.18"
			w.Testcase = "compose.install"
			w.Timestamp = epoch.Add(3 * time.Minute)
		}),
		newWaiver(func(w *store.Waiver) {
			w.SubjectType = "compose"
			w.SubjectIdentifier = "Fedora-9000-19700101.n.18"
			w.Testcase = "compose.upgrade"
			w.ProductVersion = "fedora-28"
			w.Timestamp = epoch.Add(4 * time.Minute)
		}),
		newWaiver(func(w *store.Waiver) {
			w.Username = "bob"
			w.Timestamp = epoch.Add(5 * time.Minute)
		}),
		newWaiver(func(w *store.Waiver) {
			w.Username = "dave"
			w.ProxiedBy = "carol"
			w.Timestamp = epoch.Add(6 * time.Minute)
		}),
	} {
		s.add(c, w)
		names[w.ID] = "w" + string(rune('1'+i))
	}
	for _, test := range findWaiversTests {
		c.Run(test.about, func(c *qt.C) {
			q := &store.Query{Filters: test.filters}
			ws, err := s.Store.FindWaivers(s.ctx, q)
			c.Assert(err, qt.IsNil)
			var got []string
			for _, w := range ws {
				got = append(got, names[w.ID])
			}
			c.Assert(got, qt.DeepEquals, test.expect)
			n, err := s.Store.CountWaivers(s.ctx, q)
			c.Assert(err, qt.IsNil)
			c.Assert(n, qt.Equals, len(test.expect))
		})
	}
}

func (s *storeSuite) TestFindWaiversSkipLimit(c *qt.C) {
	var ws []*store.Waiver
	for i := 0; i < 5; i++ {
		i := i
		ws = append(ws, newWaiver(func(w *store.Waiver) {
			w.Testcase = "t" + string(rune('0'+i))
			w.Timestamp = epoch.Add(time.Duration(i) * time.Second)
		}))
	}
	s.add(c, ws...)

	found, err := s.Store.FindWaivers(s.ctx, &store.Query{Skip: 1, Limit: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(ids(found), qt.DeepEquals, []int64{ws[3].ID, ws[2].ID})

	found, err = s.Store.FindWaivers(s.ctx, &store.Query{Skip: 4, Limit: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(ids(found), qt.DeepEquals, []int64{ws[0].ID})

	found, err = s.Store.FindWaivers(s.ctx, &store.Query{Skip: 10, Limit: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(found, qt.HasLen, 0)

	n, err := s.Store.CountWaivers(s.ctx, &store.Query{Skip: 1, Limit: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 5)
}

func ids(ws []store.Waiver) []int64 {
	var ids []int64
	for _, w := range ws {
		ids = append(ids, w.ID)
	}
	return ids
}
