// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package sqlstore

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"time"

	"github.com/juju/loggo"
	errgo "gopkg.in/errgo.v1"

	"github.com/release-engineering/waiverdb/internal/monitoring"
	"github.com/release-engineering/waiverdb/store"
)

var logger = loggo.GetLogger("waiverdb.store.sqlstore")

type waiverStore struct {
	*backend
}

type insertWaiverParams struct {
	argBuilder

	Values []interface{}
}

// AddWaivers implements store.Store.AddWaivers.
func (s *waiverStore) AddWaivers(ctx context.Context, ws []*store.Waiver) error {
	for _, w := range ws {
		if err := w.Validate(); err != nil {
			return errgo.Mask(err, errgo.Is(store.ErrInvalidWaiver))
		}
	}
	ids := make([]int64, len(ws))
	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i, w := range ws {
			ts := w.Timestamp
			if ts.IsZero() {
				ts = now
			}
			params := &insertWaiverParams{
				argBuilder: s.driver.argBuilderFunc(),
				Values: []interface{}{
					w.SubjectType,
					w.SubjectIdentifier,
					w.Testcase,
					nullString(w.Scenario),
					w.Username,
					nullString(w.ProxiedBy),
					w.ProductVersion,
					w.Waived,
					nullString(w.Comment),
					ts.UTC(),
				},
			}
			row, err := s.driver.queryRow(ctx, tx, tmplInsertWaiver, params)
			if err != nil {
				return errgo.Mask(err)
			}
			if err := row.Scan(&ids[i]); err != nil {
				monitoring.DBError()
				return errgo.Notef(err, "cannot insert waiver")
			}
		}
		return nil
	})
	if err != nil {
		return errgo.Mask(err)
	}
	// Only update the waivers once the transaction has committed.
	for i, w := range ws {
		w.ID = ids[i]
		if w.Timestamp.IsZero() {
			w.Timestamp = now
		}
		w.Timestamp = w.Timestamp.UTC()
	}
	return nil
}

type getWaiverParams struct {
	argBuilder

	Columns []string
	ID      int64
}

// Waiver implements store.Store.Waiver.
func (s *waiverStore) Waiver(ctx context.Context, id int64) (*store.Waiver, error) {
	params := &getWaiverParams{
		argBuilder: s.driver.argBuilderFunc(),
		Columns:    waiverColumns,
		ID:         id,
	}
	row, err := s.driver.queryRow(ctx, s.db, tmplGetWaiver, params)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	var w store.Waiver
	err = scanWaiver(row, &w)
	if errgo.Cause(err) == sql.ErrNoRows {
		return nil, store.NotFoundError(id)
	}
	if err != nil {
		monitoring.DBError()
		return nil, errgo.Notef(err, "cannot get waiver")
	}
	return &w, nil
}

type condition struct {
	Column     string
	Comparison string
	Value      interface{}
}

type findWaiversParams struct {
	argBuilder

	Columns         []string
	Groups          [][]condition
	IncludeObsolete bool
	Skip            int
	Limit           int
}

func (s *waiverStore) findParams(q *store.Query) *findWaiversParams {
	params := &findWaiversParams{
		argBuilder:      s.driver.argBuilderFunc(),
		Columns:         waiverColumns,
		IncludeObsolete: q.IncludeObsolete,
		Skip:            q.Skip,
		Limit:           q.Limit,
	}
	for _, g := range q.Groups() {
		params.Groups = append(params.Groups, conditions(g))
	}
	return params
}

func conditions(g store.FilterGroup) []condition {
	var conds []condition
	add := func(column, value string) {
		if value != "" {
			conds = append(conds, condition{column, "=", value})
		}
	}
	add("subject_type", g.SubjectType)
	add("subject_identifier", g.SubjectIdentifier)
	add("testcase", g.Testcase)
	add("scenario", g.Scenario)
	add("product_version", g.ProductVersion)
	add("username", g.Username)
	add("proxied_by", g.ProxiedBy)
	if !g.Since.From.IsZero() {
		conds = append(conds, condition{"timestamp", ">=", g.Since.From.UTC()})
	}
	if !g.Since.To.IsZero() {
		conds = append(conds, condition{"timestamp", "<=", g.Since.To.UTC()})
	}
	return conds
}

// FindWaivers implements store.Store.FindWaivers.
func (s *waiverStore) FindWaivers(ctx context.Context, q *store.Query) ([]store.Waiver, error) {
	rows, err := s.driver.query(ctx, s.db, tmplFindWaivers, s.findParams(q))
	if err != nil {
		return nil, errgo.Mask(err)
	}
	defer rows.Close()
	var ws []store.Waiver
	for rows.Next() {
		var w store.Waiver
		if err := scanWaiver(rows, &w); err != nil {
			monitoring.DBError()
			return nil, errgo.Mask(err)
		}
		ws = append(ws, w)
	}
	if err := rows.Err(); err != nil {
		monitoring.DBError()
		return nil, errgo.Mask(err)
	}
	return ws, nil
}

// CountWaivers implements store.Store.CountWaivers.
func (s *waiverStore) CountWaivers(ctx context.Context, q *store.Query) (int, error) {
	row, err := s.driver.queryRow(ctx, s.db, tmplCountWaivers, s.findParams(q))
	if err != nil {
		return 0, errgo.Mask(err)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		monitoring.DBError()
		return 0, errgo.Mask(err)
	}
	return n, nil
}

// Ping implements store.Store.Ping.
func (s *waiverStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		monitoring.DBError()
		return errgo.Mask(err)
	}
	return nil
}

type nullTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (n *nullTime) Scan(src interface{}) error {
	if src == nil {
		n.Time = time.Time{}
		n.Valid = false
		return nil
	}
	if t, ok := src.(time.Time); ok {
		n.Time = t
		n.Valid = true
		return nil
	}
	return errgo.Newf("unsupported Scan, storing driver.Value type %T into type %T", src, n)
}

// Value implements sqldriver.Valuer.
func (n nullTime) Value() (sqldriver.Value, error) {
	if n.Valid {
		return n.Time, nil
	}
	return nil, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWaiver(s scanner, w *store.Waiver) error {
	var scenario, proxiedBy, comment sql.NullString
	var timestamp nullTime
	err := s.Scan(
		&w.ID,
		&w.SubjectType,
		&w.SubjectIdentifier,
		&w.Testcase,
		&scenario,
		&w.Username,
		&proxiedBy,
		&w.ProductVersion,
		&w.Waived,
		&comment,
		&timestamp,
	)
	if err != nil {
		return errgo.Mask(err, errgo.Is(sql.ErrNoRows))
	}
	w.Scenario = scenario.String
	w.ProxiedBy = proxiedBy.String
	w.Comment = comment.String
	if timestamp.Valid {
		w.Timestamp = timestamp.Time.UTC()
	}
	return nil
}
