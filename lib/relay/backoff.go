// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package relay

import (
	"errors"
	"time"

	"github.com/jpillora/backoff"
)

const (
	// InitialRetryDelay is the delay before the first retry of a failed
	// client call.
	InitialRetryDelay = time.Second
	// MaxRetryDelay caps the exponential retry delay.
	MaxRetryDelay = time.Minute
	// ReconnectDelay is the fixed delay before reattempting a dropped
	// subscription or connection.
	ReconnectDelay = 10 * time.Second
)

// NewBackoff returns the retry policy shared by the relay loops.
func NewBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    InitialRetryDelay,
		Max:    MaxRetryDelay,
		Factor: 2,
	}
}

// ConnectionError marks a transport-level failure, as opposed to a
// chain-reported one. Loops reconnect on these instead of plain retrying.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection error: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// WrapConnectionError marks err as a transport-level failure.
func WrapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Err: err}
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
