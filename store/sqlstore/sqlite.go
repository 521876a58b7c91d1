// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package sqlstore

import (
	"database/sql"

	errgo "gopkg.in/errgo.v1"
)

const sqliteInit = `
CREATE TABLE IF NOT EXISTS waivers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_type TEXT NOT NULL,
	subject_identifier TEXT NOT NULL,
	testcase TEXT NOT NULL,
	scenario VARCHAR(255),
	username VARCHAR(255) NOT NULL,
	proxied_by VARCHAR(255),
	product_version VARCHAR(200) NOT NULL,
	waived BOOLEAN NOT NULL DEFAULT FALSE,
	comment TEXT,
	timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_waiver_subject_type ON waivers (subject_type);
CREATE INDEX IF NOT EXISTS ix_waiver_subject_identifier ON waivers (subject_identifier);
CREATE INDEX IF NOT EXISTS ix_waiver_subject_type_identifier ON waivers (subject_type, subject_identifier);
CREATE INDEX IF NOT EXISTS ix_waiver_testcase ON waivers (testcase);
`

// SQLite only allows OFFSET after a LIMIT; a negative limit means no
// limit.
var sqliteTmpls = [numTmpl]string{
	tmplInsertWaiver: postgresTmpls[tmplInsertWaiver],
	tmplGetWaiver:    postgresTmpls[tmplGetWaiver],
	tmplFindWaivers: `
		SELECT {{join .Columns ", "}} FROM waivers` + whereWaivers + `
		ORDER BY timestamp DESC, id DESC
		{{if gt .Limit 0}}LIMIT {{.Limit}}{{else if gt .Skip 0}}LIMIT -1{{end}}
		{{if gt .Skip 0}}OFFSET {{.Skip}}{{end}}`,
	tmplCountWaivers: postgresTmpls[tmplCountWaivers],
}

// newSQLiteDriver creates a sqlite3 driver using the given DB.
func newSQLiteDriver(db *sql.DB) (*driver, error) {
	// An in-memory database exists only as long as its connection.
	db.SetMaxOpenConns(1)
	_, err := db.Exec(sqliteInit)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	d := &driver{
		name: "sqlite3",
		argBuilderFunc: func() argBuilder {
			return &sqliteArgBuilder{}
		},
	}
	for i, t := range sqliteTmpls {
		if err := d.parseTemplate(tmplID(i), t); err != nil {
			return nil, errgo.Notef(err, "cannot parse template %v", t)
		}
	}
	return d, nil
}

// sqliteArgBuilder implements an argBuilder that produces "?"
// placeholders.
type sqliteArgBuilder struct {
	args_ []interface{}
}

// Arg implements argbuilder.Arg.
func (b *sqliteArgBuilder) Arg(a interface{}) string {
	b.args_ = append(b.args_, a)
	return "?"
}

// args implements argbuilder.args.
func (b *sqliteArgBuilder) args() []interface{} {
	return b.args_
}
