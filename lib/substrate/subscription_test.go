// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package substrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ChainSafe/bridge-relay/lib/relay"
)

func TestJustificationStreamDecodes(t *testing.T) {
	raw := make(chan string)
	subErr := make(chan error)
	stream := newJustificationStream(context.Background(), func() {}, raw, subErr)
	defer stream.Unsubscribe()

	go func() { raw <- "0x0102ff" }()

	select {
	case justification := <-stream.Justifications():
		require.Equal(t, []byte{0x01, 0x02, 0xff}, justification)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for justification")
	}
}

func TestJustificationStreamBadHex(t *testing.T) {
	raw := make(chan string)
	stream := newJustificationStream(context.Background(), func() {}, raw, make(chan error))
	defer stream.Unsubscribe()

	go func() { raw <- "not hex" }()

	select {
	case err := <-stream.Err():
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error")
	}

	// the justification channel closes once the stream dies
	_, open := <-stream.Justifications()
	require.False(t, open)
}

func TestJustificationStreamTransportError(t *testing.T) {
	subErr := make(chan error, 1)
	subErr <- errors.New("websocket closed")
	stream := newJustificationStream(context.Background(), func() {}, make(chan string), subErr)
	defer stream.Unsubscribe()

	select {
	case err := <-stream.Err():
		require.True(t, relay.IsConnectionError(err))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error")
	}
}

func TestJustificationStreamUnsubscribe(t *testing.T) {
	unsubscribed := false
	stream := newJustificationStream(context.Background(), func() { unsubscribed = true },
		make(chan string), make(chan error))

	stream.Unsubscribe()
	stream.Unsubscribe() // idempotent
	require.True(t, unsubscribed)

	select {
	case _, open := <-stream.Justifications():
		require.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close")
	}
}
