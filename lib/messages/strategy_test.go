// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package messages

import (
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/stretchr/testify/require"

	"github.com/ChainSafe/bridge-relay/lib/relay"
)

func header(number uint32) relay.HeaderID {
	return relay.HeaderID{Number: number, Hash: types.NewHash([]byte{byte(number)})}
}

// stateWithPeer returns a RaceState whose target knows the source as
// finalized up to the given number.
func stateWithPeer(number uint32) *RaceState {
	peer := header(number)
	return &RaceState{TargetState: &relay.ClientState{BestFinalizedPeerAtBestSelf: &peer}}
}

func TestBasicStrategyEmpty(t *testing.T) {
	s := NewBasicStrategy(0)
	require.True(t, s.IsEmpty())
	require.Equal(t, uint64(0), s.BestAtSource())
	require.Equal(t, uint64(0), s.BestAtTarget())
	require.Equal(t, uint64(DefaultMaxNoncesInSingleTx), s.maxNonces)

	_, _, ok := s.SelectNoncesToDeliver(stateWithPeer(100))
	require.False(t, ok)
}

func TestSourceNoncesUpdated(t *testing.T) {
	s := NewBasicStrategy(4)

	s.SourceNoncesUpdated(header(1), ClientNonces{LatestNonce: 3})
	require.Equal(t, uint64(3), s.BestAtSource())

	// duplicate and out-of-order reports are dropped silently
	s.SourceNoncesUpdated(header(2), ClientNonces{LatestNonce: 3})
	s.SourceNoncesUpdated(header(2), ClientNonces{LatestNonce: 2})
	require.Len(t, s.queue, 1)

	s.SourceNoncesUpdated(header(2), ClientNonces{LatestNonce: 5})
	require.Equal(t, uint64(5), s.BestAtSource())
	require.Len(t, s.queue, 2)

	// reports at or below the target's confirmed nonce are stale
	s.TargetNoncesUpdated(ClientNonces{LatestNonce: 7}, &RaceState{})
	s.SourceNoncesUpdated(header(3), ClientNonces{LatestNonce: 7})
	require.True(t, s.IsEmpty())
}

func TestTargetNoncesUpdated(t *testing.T) {
	s := NewBasicStrategy(4)
	s.SourceNoncesUpdated(header(1), ClientNonces{LatestNonce: 2})
	s.SourceNoncesUpdated(header(2), ClientNonces{LatestNonce: 5})

	state := &RaceState{}
	s.TargetNoncesUpdated(ClientNonces{LatestNonce: 2}, state)
	require.Equal(t, uint64(2), s.BestAtTarget())
	require.Len(t, s.queue, 1) // the (header 1, nonce 2) entry is subsumed

	// regressions never apply
	s.TargetNoncesUpdated(ClientNonces{LatestNonce: 1}, state)
	require.Equal(t, uint64(2), s.BestAtTarget())

	// re-arrival of the current value is allowed and idempotent
	s.TargetNoncesUpdated(ClientNonces{LatestNonce: 2}, state)
	require.Equal(t, uint64(2), s.BestAtTarget())
	require.Len(t, s.queue, 1)
}

func TestTargetNoncesUpdatedClearsSelections(t *testing.T) {
	s := NewBasicStrategy(4)

	state := &RaceState{
		NoncesToSubmit: &SelectedNonces{
			At:     header(2),
			Nonces: relay.InclusiveRange{Begin: 1, End: 3},
		},
		NoncesSubmitted: &relay.InclusiveRange{Begin: 1, End: 3},
	}

	// partial progress keeps both
	s.TargetNoncesUpdated(ClientNonces{LatestNonce: 2}, state)
	require.NotNil(t, state.NoncesToSubmit)
	require.NotNil(t, state.NoncesSubmitted)

	// a regression touches nothing
	s.TargetNoncesUpdated(ClientNonces{LatestNonce: 1}, state)
	require.Equal(t, uint64(2), s.BestAtTarget())
	require.NotNil(t, state.NoncesToSubmit)
	require.NotNil(t, state.NoncesSubmitted)

	// full coverage clears both, even if another relayer delivered it
	s.TargetNoncesUpdated(ClientNonces{LatestNonce: 3}, state)
	require.Nil(t, state.NoncesToSubmit)
	require.Nil(t, state.NoncesSubmitted)
}

// The finality gate in action: nonces 1,2,6,8 appear at source headers
// 1,2,3,5 with a 4-nonce cap while the target has finalized the source up
// to header 4.
func TestSelectNoncesToDeliver(t *testing.T) {
	s := NewBasicStrategy(4)
	s.SourceNoncesUpdated(header(1), ClientNonces{LatestNonce: 1})
	s.SourceNoncesUpdated(header(2), ClientNonces{LatestNonce: 2})
	s.SourceNoncesUpdated(header(3), ClientNonces{LatestNonce: 6})
	s.SourceNoncesUpdated(header(5), ClientNonces{LatestNonce: 8})

	state := stateWithPeer(4)

	// capped at 4 nonces
	nonces, _, ok := s.SelectNoncesToDeliver(state)
	require.True(t, ok)
	require.Equal(t, relay.InclusiveRange{Begin: 1, End: 4}, nonces)

	s.TargetNoncesUpdated(ClientNonces{LatestNonce: 4}, state)

	// stops at nonce 6: nonce 7 first appeared at header 5, which the
	// target has not finalized yet
	nonces, _, ok = s.SelectNoncesToDeliver(state)
	require.True(t, ok)
	require.Equal(t, relay.InclusiveRange{Begin: 5, End: 6}, nonces)

	s.TargetNoncesUpdated(ClientNonces{LatestNonce: 6}, state)

	// nothing deliverable until the target sees header 5
	_, _, ok = s.SelectNoncesToDeliver(state)
	require.False(t, ok)

	state = stateWithPeer(5)
	nonces, _, ok = s.SelectNoncesToDeliver(state)
	require.True(t, ok)
	require.Equal(t, relay.InclusiveRange{Begin: 7, End: 8}, nonces)
	require.True(t, s.IsEmpty())
}

func TestSelectNoncesAtMostOneOutstanding(t *testing.T) {
	s := NewBasicStrategy(4)
	s.SourceNoncesUpdated(header(1), ClientNonces{LatestNonce: 2})

	state := stateWithPeer(4)
	state.NoncesToSubmit = &SelectedNonces{Nonces: relay.InclusiveRange{Begin: 1, End: 2}}
	_, _, ok := s.SelectNoncesToDeliver(state)
	require.False(t, ok)

	state.NoncesToSubmit = nil
	state.NoncesSubmitted = &relay.InclusiveRange{Begin: 1, End: 2}
	_, _, ok = s.SelectNoncesToDeliver(state)
	require.False(t, ok)

	state.NoncesSubmitted = nil
	nonces, _, ok := s.SelectNoncesToDeliver(state)
	require.True(t, ok)
	require.Equal(t, relay.InclusiveRange{Begin: 1, End: 2}, nonces)
}

func TestSelectNoncesNeedsTargetState(t *testing.T) {
	s := NewBasicStrategy(4)
	s.SourceNoncesUpdated(header(1), ClientNonces{LatestNonce: 2})

	_, _, ok := s.SelectNoncesToDeliver(&RaceState{})
	require.False(t, ok)

	_, _, ok = s.SelectNoncesToDeliver(&RaceState{TargetState: &relay.ClientState{}})
	require.False(t, ok)
}

func TestRequiredSourceHeaderAtTarget(t *testing.T) {
	s := NewBasicStrategy(4)
	require.Nil(t, s.RequiredSourceHeaderAtTarget(stateWithPeer(4)))

	s.SourceNoncesUpdated(header(1), ClientNonces{LatestNonce: 1})
	s.SourceNoncesUpdated(header(5), ClientNonces{LatestNonce: 8})

	required := s.RequiredSourceHeaderAtTarget(stateWithPeer(4))
	require.NotNil(t, required)
	require.Equal(t, header(5), *required)

	require.Nil(t, s.RequiredSourceHeaderAtTarget(stateWithPeer(5)))

	// with no target state at all, the newest queued header is required
	required = s.RequiredSourceHeaderAtTarget(&RaceState{})
	require.NotNil(t, required)
	require.Equal(t, header(5), *required)
}
