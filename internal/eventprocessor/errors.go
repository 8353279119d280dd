// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package eventprocessor

import "errors"

// ErrInvalidEvent indicates an event that fails schema validation.
// Such events are permanent failures and go straight to the poison
// topic.
var ErrInvalidEvent = errors.New("invalid event")

// ErrClosed is returned when publishing through a closed publisher.
var ErrClosed = errors.New("publisher closed")

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the router poisons the message without
// retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err is marked permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
