// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package sqlstore

import (
	"database/sql"
	"fmt"

	errgo "gopkg.in/errgo.v1"
)

const postgresInit = `
CREATE TABLE IF NOT EXISTS waivers (
	id SERIAL PRIMARY KEY,
	subject_type TEXT NOT NULL,
	subject_identifier TEXT NOT NULL,
	testcase TEXT NOT NULL,
	scenario VARCHAR(255),
	username VARCHAR(255) NOT NULL,
	proxied_by VARCHAR(255),
	product_version VARCHAR(200) NOT NULL,
	waived BOOLEAN NOT NULL DEFAULT FALSE,
	comment TEXT,
	timestamp TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS ix_waiver_subject_type ON waivers (subject_type);
CREATE INDEX IF NOT EXISTS ix_waiver_subject_identifier ON waivers (subject_identifier);
CREATE INDEX IF NOT EXISTS ix_waiver_subject_type_identifier ON waivers (subject_type, subject_identifier);
CREATE INDEX IF NOT EXISTS ix_waiver_testcase ON waivers (testcase);
`

var postgresTmpls = [numTmpl]string{
	tmplInsertWaiver: `
		INSERT INTO waivers (subject_type, subject_identifier, testcase, scenario, username, proxied_by, product_version, waived, comment, timestamp)
		VALUES ({{range $i, $v := .Values}}{{if gt $i 0}}, {{end}}{{$v | $.Arg}}{{end}})
		RETURNING id`,
	tmplGetWaiver: `
		SELECT {{join .Columns ", "}} FROM waivers
		WHERE id={{.ID | .Arg}}`,
	tmplFindWaivers: `
		SELECT {{join .Columns ", "}} FROM waivers` + whereWaivers + `
		ORDER BY timestamp DESC, id DESC
		{{if gt .Limit 0}}LIMIT {{.Limit}}{{end}}
		{{if gt .Skip 0}}OFFSET {{.Skip}}{{end}}`,
	tmplCountWaivers: `
		SELECT count(*) FROM waivers` + whereWaivers,
}

// newPostgresDriver creates a postgres driver using the given DB.
func newPostgresDriver(db *sql.DB) (*driver, error) {
	_, err := db.Exec(postgresInit)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	d := &driver{
		name: "postgres",
		argBuilderFunc: func() argBuilder {
			return &postgresArgBuilder{}
		},
	}
	for i, t := range postgresTmpls {
		if err := d.parseTemplate(tmplID(i), t); err != nil {
			return nil, errgo.Notef(err, "cannot parse template %v", t)
		}
	}
	return d, nil
}

// postgresArgBuilder implements an argBuilder that produces placeholders
// in the the "$n" format.
type postgresArgBuilder struct {
	args_ []interface{}
}

// Arg implements argbuilder.Arg.
func (b *postgresArgBuilder) Arg(a interface{}) string {
	b.args_ = append(b.args_, a)
	return fmt.Sprintf("$%d", len(b.args_))
}

// args implements argbuilder.args.
func (b *postgresArgBuilder) args() []interface{} {
	return b.args_
}
