// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package sqlstore

import (
	"database/sql"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	errgo "gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/store"
)

// Params holds the parameters
// used in the config file.
type Params struct {
	// DriverName holds the database/sql driver to use. It is set
	// from the storage type.
	DriverName string `yaml:"-"`

	ConnectionString string `yaml:"connection-string"`
}

func init() {
	store.Register("postgres", unmarshalBackend("postgres"))
	store.Register("sqlite3", unmarshalBackend("sqlite3"))
}

func unmarshalBackend(driverName string) func(func(interface{}) error) (store.BackendFactory, error) {
	return func(unmarshal func(interface{}) error) (store.BackendFactory, error) {
		var p Params
		if err := unmarshal(&p); err != nil {
			return nil, errgo.Mask(err)
		}
		p.DriverName = driverName
		return p, nil
	}
}

// NewBackend implements store.BackendFactory.
func (p Params) NewBackend() (store.Backend, error) {
	logger.Infof("connecting to %s database", p.DriverName)
	db, err := sql.Open(p.DriverName, p.ConnectionString)
	if err != nil {
		return nil, errgo.Notef(err, "cannot connect to database")
	}
	backend, err := NewBackend(p.DriverName, db)
	if err != nil {
		db.Close()
		return nil, errgo.Notef(err, "cannot initialise database")
	}
	return backend, nil
}
