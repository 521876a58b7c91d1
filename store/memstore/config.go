// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package memstore

import (
	"github.com/release-engineering/waiverdb/store"
)

func init() {
	store.Register("memory", func(func(interface{}) error) (store.BackendFactory, error) {
		return &backend{
			store: NewStore(),
		}, nil
	})
}

type backend struct {
	store store.Store
}

// NewBackend implements store.BackendFactory.NewBackend.
func (b *backend) NewBackend() (store.Backend, error) {
	return b, nil
}

// Store implements store.Backend.Store.
func (b *backend) Store() store.Store {
	return b.store
}

// Close implements store.Backend.Close.
func (b *backend) Close() {
}
