// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package store defines the waiver data model and the interface
// provided by waiver storage backends.
package store

import (
	"context"
	"time"
)

// Waiver is a stored waiver. Waivers are never modified once they have
// been added.
type Waiver struct {
	// ID is assigned by the store when the waiver is added. IDs
	// increase with every waiver added.
	ID int64

	SubjectType       string
	SubjectIdentifier string
	Testcase          string

	// Scenario optionally holds a variant of the test case. An empty
	// scenario is stored as a null value.
	Scenario string

	// Username holds the user the waiver was recorded for.
	Username string

	// ProxiedBy holds the superuser that created the waiver on behalf
	// of Username, if any.
	ProxiedBy string

	ProductVersion string
	Waived         bool
	Comment        string

	// Timestamp holds the creation time of the waiver.
	Timestamp time.Time
}

// Key holds the fields that identify which waivers supersede each
// other. Of all the waivers with the same key only the one with the
// highest ID is current; the others are obsolete.
type Key struct {
	SubjectType       string
	SubjectIdentifier string
	Testcase          string
	Scenario          string
	Username          string
	ProductVersion    string
}

// Key returns the obsolescence key of the waiver.
func (w *Waiver) Key() Key {
	return Key{
		SubjectType:       w.SubjectType,
		SubjectIdentifier: w.SubjectIdentifier,
		Testcase:          w.Testcase,
		Scenario:          w.Scenario,
		Username:          w.Username,
		ProductVersion:    w.ProductVersion,
	}
}

// Validate checks that the waiver holds all the fields required to
// store it.
func (w *Waiver) Validate() error {
	switch {
	case w.SubjectType == "":
		return missingFieldError("subject_type")
	case w.SubjectIdentifier == "":
		return missingFieldError("subject_identifier")
	case w.Testcase == "":
		return missingFieldError("testcase")
	case w.Username == "":
		return missingFieldError("username")
	case w.ProductVersion == "":
		return missingFieldError("product_version")
	}
	return nil
}

// Store is the interface that represents the data storage mechanism for
// waivers.
type Store interface {
	// AddWaivers stores the given waivers. Either all of the waivers
	// are stored or none of them are. On success the ID of each
	// waiver is set to its assigned value. If a waiver has a zero
	// Timestamp it is set to the current time.
	AddWaivers(ctx context.Context, ws []*Waiver) error

	// Waiver returns the waiver with the given id. If there is no
	// such waiver an error with a cause of ErrNotFound is returned.
	Waiver(ctx context.Context, id int64) (*Waiver, error)

	// FindWaivers returns the waivers that match the given query,
	// most recent first.
	FindWaivers(ctx context.Context, q *Query) ([]Waiver, error)

	// CountWaivers returns the number of waivers that match the
	// given query, ignoring its Skip and Limit.
	CountWaivers(ctx context.Context, q *Query) (int, error)

	// Ping checks that the store is available.
	Ping(ctx context.Context) error
}

// LatestIDs returns the set of IDs of the current waivers in ws.
// Obsolescence is relative to the given waivers, so ws must hold every
// stored waiver for the result to be meaningful.
func LatestIDs(ws []Waiver) map[int64]bool {
	latest := make(map[Key]int64)
	for i := range ws {
		k := ws[i].Key()
		if id, ok := latest[k]; !ok || ws[i].ID > id {
			latest[k] = ws[i].ID
		}
	}
	ids := make(map[int64]bool, len(latest))
	for _, id := range latest {
		ids[id] = true
	}
	return ids
}
