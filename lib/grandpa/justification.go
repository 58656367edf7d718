// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package grandpa

import (
	"fmt"

	"github.com/ChainSafe/bridge-relay/lib/crypto"
	"github.com/ChainSafe/bridge-relay/lib/crypto/ed25519"
	"github.com/ChainSafe/bridge-relay/lib/relay"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
)

// Precommit is a vote for a target block.
type Precommit struct {
	TargetHash   types.Hash
	TargetNumber uint32
}

// SignedPrecommit is a precommit with the voter's signature over the
// localized precommit message.
type SignedPrecommit struct {
	Precommit Precommit
	Signature [ed25519.SignatureLength]byte
	ID        [ed25519.PublicKeyLength]byte
}

// Commit finalizes a target block with a list of signed precommits.
type Commit struct {
	TargetHash   types.Hash
	TargetNumber uint32
	Precommits   []SignedPrecommit
}

// Justification proves finality of its commit target. Precommits voting
// for descendants of the target are routed to it through the
// votes-ancestries headers.
type Justification struct {
	Round           uint64
	Commit          Commit
	VotesAncestries []types.Header
}

// Decode decodes a SCALE-encoded justification.
func Decode(encoded []byte) (*Justification, error) {
	justification := new(Justification)
	if err := scaleDecode(encoded, justification); err != nil {
		return nil, fmt.Errorf("decoding justification: %w", err)
	}
	return justification, nil
}

// Encode returns the SCALE encoding of the justification.
func (j *Justification) Encode() ([]byte, error) {
	return codec.Encode(j)
}

// Target returns the block this justification finalizes.
func (j *Justification) Target() relay.HeaderID {
	return relay.HeaderID{
		Number: j.Commit.TargetNumber,
		Hash:   j.Commit.TargetHash,
	}
}

const precommitStage uint8 = 1

// fullVote is the message a voter signs: the precommit localized to its
// round and authority set id.
type fullVote struct {
	Stage        uint8
	TargetHash   types.Hash
	TargetNumber uint32
	Round        uint64
	SetID        uint64
}

// SignatureMessage returns the exact bytes a voter signs for the
// precommit in the given round and authority set.
func SignatureMessage(precommit Precommit, round, setID uint64) ([]byte, error) {
	return codec.Encode(fullVote{
		Stage:        precommitStage,
		TargetHash:   precommit.TargetHash,
		TargetNumber: precommit.TargetNumber,
		Round:        round,
		SetID:        setID,
	})
}

// Verify checks that the justification finalizes its target under the
// given authority set: enough voting weight signed correct localized
// messages, every precommit routes to the commit target, and the
// votes-ancestries carry no unused headers. Individual bad signatures and
// unknown voters are skipped, so a justification mixing garbage with
// enough valid votes is still accepted.
func (j *Justification) Verify(setID uint64, authorities AuthorityList) error {
	votes, err := j.checkedVotes(setID, authorities)
	if err != nil {
		return err
	}

	required := crypto.SignaturesRequired(authorities.TotalWeight())
	if votes.weight < required {
		return fmt.Errorf("%w: got weight %d, need %d",
			crypto.ErrNotEnoughCorrectSignatures, votes.weight, required)
	}

	if len(votes.visited) != len(votes.ancestry.headers) {
		return ErrRedundantVotesAncestries
	}
	return nil
}

// Optimize returns a copy of the justification stripped down to the
// minimal prefix of valid precommits meeting the weight threshold, with
// unused ancestry headers dropped.
func (j *Justification) Optimize(setID uint64, authorities AuthorityList) (*Justification, error) {
	votes, err := j.checkedVotes(setID, authorities)
	if err != nil {
		return nil, err
	}

	required := crypto.SignaturesRequired(authorities.TotalWeight())
	if votes.weight < required {
		return nil, fmt.Errorf("%w: got weight %d, need %d",
			crypto.ErrNotEnoughCorrectSignatures, votes.weight, required)
	}

	precommits := make([]SignedPrecommit, 0, len(votes.valid))
	visited := make(map[types.Hash]struct{})
	weight := uint64(0)
	for _, vote := range votes.valid {
		if weight >= required {
			break
		}
		precommits = append(precommits, j.Commit.Precommits[vote.index])
		weight += vote.weight
		for _, hash := range vote.route {
			visited[hash] = struct{}{}
		}
	}

	ancestries := make([]types.Header, 0, len(visited))
	for _, header := range j.VotesAncestries {
		hash, err := relay.HeaderHash(&header)
		if err != nil {
			return nil, err
		}
		if _, used := visited[hash]; used {
			ancestries = append(ancestries, header)
		}
	}

	return &Justification{
		Round: j.Round,
		Commit: Commit{
			TargetHash:   j.Commit.TargetHash,
			TargetNumber: j.Commit.TargetNumber,
			Precommits:   precommits,
		},
		VotesAncestries: ancestries,
	}, nil
}

type checkedVote struct {
	index  int
	weight uint64
	// route holds the ancestry header hashes used to reach the commit
	// target, excluding the target itself.
	route []types.Hash
}

type checkedVotes struct {
	valid    []checkedVote
	weight   uint64
	visited  map[types.Hash]struct{}
	ancestry *ancestryChain
}

func (j *Justification) checkedVotes(setID uint64, authorities AuthorityList) (*checkedVotes, error) {
	if len(authorities) == 0 {
		return nil, ErrEmptyAuthorityList
	}

	ancestry, err := newAncestryChain(j.VotesAncestries)
	if err != nil {
		return nil, err
	}

	votes := &checkedVotes{
		visited:  make(map[types.Hash]struct{}),
		ancestry: ancestry,
	}
	seen := make(map[[ed25519.PublicKeyLength]byte]struct{})

	for i, signed := range j.Commit.Precommits {
		idx := authorities.index(signed.ID)
		if idx == -1 {
			logger.Debug("skipping precommit from unknown voter", "index", i)
			continue
		}
		if _, duplicate := seen[signed.ID]; duplicate {
			logger.Debug("skipping duplicate precommit", "index", i)
			continue
		}

		msg, err := SignatureMessage(signed.Precommit, j.Round, setID)
		if err != nil {
			return nil, err
		}

		key, err := ed25519.NewPublicKey(signed.ID[:])
		if err != nil {
			return nil, err
		}
		if !key.Verify(msg, signed.Signature[:]) {
			logger.Debug("skipping precommit with invalid signature", "index", i)
			continue
		}

		var route []types.Hash
		if signed.Precommit.TargetHash != j.Commit.TargetHash {
			route, err = ancestry.route(j.Commit.TargetHash, signed.Precommit.TargetHash)
			if err != nil {
				return nil, fmt.Errorf("%w: precommit %d", ErrInvalidPrecommitAncestry, i)
			}
		}

		seen[signed.ID] = struct{}{}
		votes.weight += authorities[idx].Weight
		for _, hash := range route {
			votes.visited[hash] = struct{}{}
		}
		votes.valid = append(votes.valid, checkedVote{
			index:  i,
			weight: authorities[idx].Weight,
			route:  route,
		})
	}

	return votes, nil
}

// ancestryChain indexes the votes-ancestries headers by hash so precommit
// targets can be routed back to the commit target.
type ancestryChain struct {
	headers map[types.Hash]*types.Header
}

func newAncestryChain(headers []types.Header) (*ancestryChain, error) {
	indexed := make(map[types.Hash]*types.Header, len(headers))
	for i := range headers {
		hash, err := relay.HeaderHash(&headers[i])
		if err != nil {
			return nil, err
		}
		indexed[hash] = &headers[i]
	}
	return &ancestryChain{headers: indexed}, nil
}

// route walks parent links from `from` down to base, returning the hashes
// of the traversed ancestry headers (from itself included, base excluded).
func (ac *ancestryChain) route(base, from types.Hash) ([]types.Hash, error) {
	route := make([]types.Hash, 0)
	current := from

	// each step must consume an ancestry header, so the walk is bounded
	for steps := 0; current != base; steps++ {
		if steps > len(ac.headers) {
			return nil, ErrInvalidPrecommitAncestry
		}
		header, ok := ac.headers[current]
		if !ok {
			return nil, ErrInvalidPrecommitAncestry
		}
		route = append(route, current)
		current = header.ParentHash
	}

	return route, nil
}
