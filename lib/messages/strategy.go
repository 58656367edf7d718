// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package messages races message nonces from a source chain to a target
// chain: the strategy decides which contiguous nonce range is safe to
// deliver next, and the race loop drives the clients around it.
package messages

import (
	log "github.com/ChainSafe/log15"

	"github.com/ChainSafe/bridge-relay/lib/relay"
)

var logger = log.New("pkg", "messages")

// DefaultMaxNoncesInSingleTx caps how many nonces one delivery transaction
// may carry when the strategy is built with no explicit cap.
const DefaultMaxNoncesInSingleTx = 256

// ClientNonces is one chain's view of a lane's nonces.
type ClientNonces struct {
	// LatestNonce is the latest nonce generated at the source, or the
	// latest nonce delivered to the target, depending on which side
	// reports.
	LatestNonce uint64
	// ConfirmedNonce is the latest nonce whose delivery has been confirmed
	// back at the source, when the reporting side tracks it.
	ConfirmedNonce *uint64
}

// ProofParameters carries per-selection proof-building knobs. It is empty
// for now: weight-based size limiting would live here.
type ProofParameters struct{}

// SelectedNonces is a nonce range picked for delivery, pinned to the
// source header whose finality the proof will be built against.
type SelectedNonces struct {
	At     relay.HeaderID
	Nonces relay.InclusiveRange
	Proof  ProofParameters
}

// RaceState is the mutable record of in-flight relay attempts for one
// lane. It is owned exclusively by the race loop; the strategy reads and
// clears parts of it.
type RaceState struct {
	NoncesToSubmit  *SelectedNonces
	NoncesSubmitted *relay.InclusiveRange
	SourceState     *relay.ClientState
	TargetState     *relay.ClientState
}

type queuedNonce struct {
	at    relay.HeaderID
	nonce uint64
}

// BasicStrategy decides, for one lane, the next contiguous nonce range
// safe to deliver. It never claims a nonce whose originating header the
// target cannot verify against yet, never resubmits, and never exceeds the
// per-transaction cap. Calls must be serialized by the owning loop.
type BasicStrategy struct {
	// queue holds (header where observed, latest nonce at that header)
	// pairs with strictly increasing nonces, oldest first.
	queue       []queuedNonce
	targetNonce uint64
	maxNonces   uint64
}

// NewBasicStrategy returns a strategy delivering at most maxNonces per
// transaction, or DefaultMaxNoncesInSingleTx if zero.
func NewBasicStrategy(maxNonces uint64) *BasicStrategy {
	if maxNonces == 0 {
		maxNonces = DefaultMaxNoncesInSingleTx
	}
	return &BasicStrategy{maxNonces: maxNonces}
}

// IsEmpty reports whether no source nonces await delivery.
func (s *BasicStrategy) IsEmpty() bool {
	return len(s.queue) == 0
}

// BestAtSource returns the latest queued source nonce, or zero if none.
func (s *BasicStrategy) BestAtSource() uint64 {
	if len(s.queue) == 0 {
		return 0
	}
	return s.queue[len(s.queue)-1].nonce
}

// BestAtTarget returns the best nonce known delivered to the target.
func (s *BasicStrategy) BestAtTarget() uint64 {
	return s.targetNonce
}

// SourceNoncesUpdated records the source's latest nonce as observed at the
// given header. Updates at or below what the target already confirmed are
// stale and dropped, as are updates that would break the queue's strictly
// increasing nonce order.
func (s *BasicStrategy) SourceNoncesUpdated(at relay.HeaderID, nonces ClientNonces) {
	if nonces.LatestNonce <= s.targetNonce {
		return
	}
	if len(s.queue) > 0 && s.queue[len(s.queue)-1].nonce >= nonces.LatestNonce {
		return
	}
	s.queue = append(s.queue, queuedNonce{at: at, nonce: nonces.LatestNonce})
}

// TargetNoncesUpdated records the target's latest delivered nonce and
// drops everything it subsumes: queued entries at or below it, plus any
// pending or submitted selection whose whole range it covers, even if some
// other relayer delivered it.
func (s *BasicStrategy) TargetNoncesUpdated(nonces ClientNonces, state *RaceState) {
	latest := nonces.LatestNonce
	if latest < s.targetNonce {
		return
	}

	for len(s.queue) > 0 && s.queue[0].nonce <= latest {
		s.queue = s.queue[1:]
	}

	if state.NoncesToSubmit != nil && state.NoncesToSubmit.Nonces.End <= latest {
		logger.Debug("dropping pending selection superseded by target progress",
			"nonces", state.NoncesToSubmit.Nonces, "latest", latest)
		state.NoncesToSubmit = nil
	}
	if state.NoncesSubmitted != nil && state.NoncesSubmitted.End <= latest {
		state.NoncesSubmitted = nil
	}

	s.targetNonce = latest
}

// SelectNoncesToDeliver picks the next range to deliver, starting right
// after the target's best nonce and extending one nonce at a time up to
// the cap. Selection stops at any nonce whose originating header is not
// yet finalized at the target. At most one range is outstanding at a time:
// nothing is selected while a previous selection is pending or submitted.
func (s *BasicStrategy) SelectNoncesToDeliver(state *RaceState) (relay.InclusiveRange, ProofParameters, bool) {
	if state.NoncesToSubmit != nil || state.NoncesSubmitted != nil {
		return relay.InclusiveRange{}, ProofParameters{}, false
	}
	if state.TargetState == nil || state.TargetState.BestFinalizedPeerAtBestSelf == nil {
		return relay.InclusiveRange{}, ProofParameters{}, false
	}
	finalized := state.TargetState.BestFinalizedPeerAtBestSelf.Number

	nonce := s.targetNonce
	for nonce-s.targetNonce < s.maxNonces {
		if len(s.queue) == 0 || s.queue[0].at.Number > finalized {
			break
		}
		nonce++
		if nonce == s.queue[0].nonce {
			s.queue = s.queue[1:]
		}
	}

	if nonce == s.targetNonce {
		return relay.InclusiveRange{}, ProofParameters{}, false
	}
	return relay.InclusiveRange{Begin: s.targetNonce + 1, End: nonce}, ProofParameters{}, true
}

// RequiredSourceHeaderAtTarget returns the source header that must become
// finalized at the target before the whole queue can drain, or nil if the
// target already knows one recent enough.
func (s *BasicStrategy) RequiredSourceHeaderAtTarget(state *RaceState) *relay.HeaderID {
	if len(s.queue) == 0 {
		return nil
	}
	back := s.queue[len(s.queue)-1]
	if state.TargetState != nil && state.TargetState.BestFinalizedPeerAtBestSelf != nil &&
		back.at.Number <= state.TargetState.BestFinalizedPeerAtBestSelf.Number {
		return nil
	}
	required := back.at
	return &required
}
