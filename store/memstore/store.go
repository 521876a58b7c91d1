// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package memstore provides an in-memory implementation of the store.
// This might be useful for simple test systems.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/juju/clock"
	errgo "gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/store"
)

type memStore struct {
	clock clock.Clock

	mu      sync.Mutex
	waivers []store.Waiver
	nextID  int64
}

// NewStore creates a new in-memory store.Store instance.
func NewStore() store.Store {
	return newStore(clock.WallClock)
}

func newStore(clk clock.Clock) *memStore {
	return &memStore{
		clock:  clk,
		nextID: 1,
	}
}

// AddWaivers implements store.Store.AddWaivers.
func (s *memStore) AddWaivers(_ context.Context, ws []*store.Waiver) error {
	for _, w := range ws {
		if err := w.Validate(); err != nil {
			return errgo.Mask(err, errgo.Is(store.ErrInvalidWaiver))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now().UTC()
	for _, w := range ws {
		w.ID = s.nextID
		s.nextID++
		if w.Timestamp.IsZero() {
			w.Timestamp = now
		}
		w.Timestamp = w.Timestamp.UTC()
		s.waivers = append(s.waivers, *w)
	}
	return nil
}

// Waiver implements store.Store.Waiver.
func (s *memStore) Waiver(_ context.Context, id int64) (*store.Waiver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Waivers are held in ID order.
	i := sort.Search(len(s.waivers), func(i int) bool {
		return s.waivers[i].ID >= id
	})
	if i == len(s.waivers) || s.waivers[i].ID != id {
		return nil, store.NotFoundError(id)
	}
	w := s.waivers[i]
	return &w, nil
}

// FindWaivers implements store.Store.FindWaivers.
func (s *memStore) FindWaivers(_ context.Context, q *store.Query) ([]store.Waiver, error) {
	ws := s.find(q)
	if q.Skip > 0 {
		if q.Skip >= len(ws) {
			return nil, nil
		}
		ws = ws[q.Skip:]
	}
	if q.Limit > 0 && len(ws) > q.Limit {
		ws = ws[:q.Limit]
	}
	return ws, nil
}

// CountWaivers implements store.Store.CountWaivers.
func (s *memStore) CountWaivers(_ context.Context, q *store.Query) (int, error) {
	return len(s.find(q)), nil
}

// Ping implements store.Store.Ping.
func (s *memStore) Ping(context.Context) error {
	return nil
}

func (s *memStore) find(q *store.Query) []store.Waiver {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest map[int64]bool
	if !q.IncludeObsolete {
		latest = store.LatestIDs(s.waivers)
	}
	var ws []store.Waiver
	for i := range s.waivers {
		w := &s.waivers[i]
		if latest != nil && !latest[w.ID] {
			continue
		}
		if q.Match(w) {
			ws = append(ws, *w)
		}
	}
	sort.Slice(ws, func(i, j int) bool {
		if !ws[i].Timestamp.Equal(ws[j].Timestamp) {
			return ws[i].Timestamp.After(ws[j].Timestamp)
		}
		return ws[i].ID > ws[j].ID
	})
	return ws
}
