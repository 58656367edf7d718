// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package grandpa verifies GRANDPA finality justifications of a bridged
// chain against its authority sets.
package grandpa

import (
	"fmt"

	"github.com/ChainSafe/bridge-relay/lib/crypto/ed25519"
	log "github.com/ChainSafe/log15"
)

var logger = log.New("pkg", "grandpa")

// Authority is one GRANDPA voter: an ed25519 public key and its voting
// weight. The wire format matches the runtime's (AccountId, u64) pairs.
type Authority struct {
	Key    [ed25519.PublicKeyLength]byte
	Weight uint64
}

// AuthorityList is the ordered list of voters of one authority set.
type AuthorityList []Authority

// TotalWeight returns the summed voting weight of the list.
func (l AuthorityList) TotalWeight() uint64 {
	total := uint64(0)
	for _, authority := range l {
		total += authority.Weight
	}
	return total
}

func (l AuthorityList) index(key [ed25519.PublicKeyLength]byte) int {
	for i, authority := range l {
		if authority.Key == key {
			return i
		}
	}
	return -1
}

// AuthoritySet is an authority list together with its generation id.
// The field order matches the bridge pallet's CurrentAuthoritySet storage
// encoding.
type AuthoritySet struct {
	Authorities AuthorityList
	SetID       uint64
}

// AuthoritySetTracker holds the current authority set of a bridged chain.
// Sets are replaced wholesale, never mutated in place, and the set id must
// strictly increase. Not safe for concurrent use: one tracker belongs to
// one relay task.
type AuthoritySetTracker struct {
	current AuthoritySet
}

// NewAuthoritySetTracker returns a tracker starting from the given set.
func NewAuthoritySetTracker(initial AuthoritySet) *AuthoritySetTracker {
	return &AuthoritySetTracker{current: initial}
}

// Current returns the tracked authority set.
func (t *AuthoritySetTracker) Current() AuthoritySet {
	return t.current
}

// Verify checks the justification against the tracked set.
func (t *AuthoritySetTracker) Verify(justification *Justification) error {
	return justification.Verify(t.current.SetID, t.current.Authorities)
}

// ApplyScheduledChange replaces the tracked set with the next authorities,
// advancing the set id by one.
func (t *AuthoritySetTracker) ApplyScheduledChange(next AuthorityList) AuthoritySet {
	t.current = AuthoritySet{
		Authorities: next,
		SetID:       t.current.SetID + 1,
	}
	logger.Debug("applied scheduled authority set change", "set_id", t.current.SetID,
		"authorities", len(next))
	return t.current
}

// Update replaces the tracked set, rejecting set id regressions.
func (t *AuthoritySetTracker) Update(next AuthoritySet) error {
	if next.SetID <= t.current.SetID {
		return fmt.Errorf("%w: have %d, got %d", ErrAuthoritySetRegression, t.current.SetID, next.SetID)
	}
	t.current = next
	return nil
}
