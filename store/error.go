// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package store

import (
	errgo "gopkg.in/errgo.v1"
)

var (
	// ErrNotFound is the error cause used when a waiver cannot be
	// found in storage.
	ErrNotFound = errgo.New("not found")

	// ErrBadFilter is the error cause used when a query does not
	// hold a usable filter.
	ErrBadFilter = errgo.New("bad filter")

	// ErrBadTimeRange is the error cause used when a time range
	// cannot be parsed.
	ErrBadTimeRange = errgo.New("bad time range")

	// ErrInvalidWaiver is the error cause used when a waiver is
	// missing a required field.
	ErrInvalidWaiver = errgo.New("invalid waiver")
)

// NotFoundError creates a new error with a cause of ErrNotFound and an
// appropriate message.
func NotFoundError(id int64) error {
	err := errgo.WithCausef(nil, ErrNotFound, "waiver %d not found", id)
	err.(*errgo.Err).SetLocation(1)
	return err
}

func missingFieldError(field string) error {
	err := errgo.WithCausef(nil, ErrInvalidWaiver, "missing %s", field)
	err.(*errgo.Err).SetLocation(1)
	return err
}
