// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"text/template"

	errgo "gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/internal/monitoring"
	"github.com/release-engineering/waiverdb/store"
)

// backend provides a wrapper around an SQL database that can be used
// as the persistent storage for waivers.
type backend struct {
	db     *sql.DB
	driver *driver
}

// NewBackend creates a new store.Backend implementation using the
// given driverName and *sql.DB. The driverName must match the value
// used to open the database and must be one of "postgres" or
// "sqlite3".
//
// Closing the returned Backend will also close db.
func NewBackend(driverName string, db *sql.DB) (store.Backend, error) {
	var driver *driver
	var err error
	switch driverName {
	case "postgres":
		driver, err = newPostgresDriver(db)
	case "sqlite3":
		driver, err = newSQLiteDriver(db)
	default:
		return nil, errgo.Newf("unsupported database driver %q", driverName)
	}
	if err != nil {
		return nil, errgo.Notef(err, "cannot initialise database")
	}
	return &backend{
		db:     db,
		driver: driver,
	}, nil
}

func (b *backend) Close() {
	b.db.Close()
}

// Store returns a new store.Store implementation using this database for
// persistent storage.
func (b *backend) Store() store.Store {
	return &waiverStore{b}
}

// withTx runs f in a new transaction. any error returned by f will not
// have it's cause masked.
func (b *backend) withTx(ctx context.Context, f func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		monitoring.DBError()
		return errgo.Mask(err)
	}
	if err := f(tx); err != nil {
		monitoring.TransactionRollback()
		if err := tx.Rollback(); err != nil {
			logger.Errorf("failed to rollback transaction: %s", err)
		}
		return errgo.Mask(err, errgo.Any)
	}
	if err := tx.Commit(); err != nil {
		monitoring.DBError()
		return errgo.Mask(err)
	}
	return nil
}

type tmplID int

const (
	tmplInsertWaiver tmplID = iota
	tmplGetWaiver
	tmplFindWaivers
	tmplCountWaivers
	numTmpl
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// argBuilder is an interface that can be embedded in template parameters
// to record the arguments needed to be supplied with SQL queries.
type argBuilder interface {
	// Arg is a method that is called in templates with the value of
	// the next argument to be used in the query. Arg should remember
	// the value and return a valid placeholder to access that
	// argument when executing the query.
	Arg(interface{}) string

	// args returns the slice of arguments that should be used when
	// executing the query.
	args() []interface{}
}

type driver struct {
	name           string
	tmpls          [numTmpl]*template.Template
	argBuilderFunc func() argBuilder
}

// query performs the Query method on the given queryer by processing the
// given template with the given params to determine the query to
// execute.
func (d *driver) query(ctx context.Context, q queryer, tmplID tmplID, params argBuilder) (*sql.Rows, error) {
	query, err := d.executeTemplate(tmplID, params)
	if err != nil {
		return nil, errgo.Notef(err, "cannot build query")
	}
	rows, err := q.QueryContext(ctx, query, params.args()...)
	if err != nil {
		monitoring.DBError()
	}
	return rows, errgo.Mask(err, errgo.Any)
}

// queryRow performs the QueryRow method on the given queryer by
// processing the given template with the given params to determine the
// query to execute.
func (d *driver) queryRow(ctx context.Context, q queryer, tmplID tmplID, params argBuilder) (*sql.Row, error) {
	query, err := d.executeTemplate(tmplID, params)
	if err != nil {
		return nil, errgo.Notef(err, "cannot build query")
	}
	return q.QueryRowContext(ctx, query, params.args()...), nil
}

func (d *driver) parseTemplate(tmplID tmplID, tmpl string) error {
	var err error
	d.tmpls[tmplID], err = template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(tmpl)
	return errgo.Mask(err)
}

func (d *driver) executeTemplate(tmplID tmplID, params interface{}) (string, error) {
	buf := new(bytes.Buffer)
	if err := d.tmpls[tmplID].Execute(buf, params); err != nil {
		return "", errgo.Mask(err)
	}
	return buf.String(), nil
}

// waiverColumns holds the columns selected for a waiver, in the order
// expected by scanWaiver.
var waiverColumns = []string{
	"id",
	"subject_type",
	"subject_identifier",
	"testcase",
	"scenario",
	"username",
	"proxied_by",
	"product_version",
	"waived",
	"comment",
	"timestamp",
}

// whereWaivers is the part of a query on the waivers table that
// applies a filter. It is shared between the drivers' templates.
const whereWaivers = `
		WHERE TRUE
		{{if .Groups}}AND ({{range $i, $g := .Groups}}{{if gt $i 0}} OR {{end}}(TRUE{{range $g}} AND {{.Column}}{{.Comparison}}{{.Value | $.Arg}}{{end}}){{end}}){{end}}
		{{if not .IncludeObsolete}}AND id IN (
			SELECT max(id) FROM waivers
			GROUP BY subject_type, subject_identifier, testcase, scenario, username, product_version
		){{end}}`
