// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package sqlstore_test

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/release-engineering/waiverdb/store"
	"github.com/release-engineering/waiverdb/store/sqlstore"
	"github.com/release-engineering/waiverdb/store/storetest"
)

var dbCount int64

// newSQLiteDSN returns the name of a new, empty, in-memory database.
func newSQLiteDSN() string {
	return fmt.Sprintf("file:waiverdb%d?mode=memory&cache=shared", atomic.AddInt64(&dbCount, 1))
}

func TestSQLiteStore(t *testing.T) {
	c := qt.New(t)
	storetest.TestStore(c, func(c *qt.C) store.Store {
		db, err := sql.Open("sqlite3", newSQLiteDSN())
		c.Assert(err, qt.IsNil)
		backend, err := sqlstore.NewBackend("sqlite3", db)
		c.Assert(err, qt.IsNil)
		c.Defer(backend.Close)
		return backend.Store()
	})
}

func TestSQLiteConfigUnmarshal(t *testing.T) {
	c := qt.New(t)
	storetest.TestUnmarshal(c, `
storage:
    type: sqlite3
    connection-string: '`+newSQLiteDSN()+`'
`)
}

func TestUnsupportedDriver(t *testing.T) {
	c := qt.New(t)
	_, err := sqlstore.NewBackend("mysql", nil)
	c.Assert(err, qt.ErrorMatches, `unsupported database driver "mysql"`)
}
