// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package finality

import (
	"context"
	stded25519 "crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/stretchr/testify/require"

	"github.com/ChainSafe/bridge-relay/lib/grandpa"
	"github.com/ChainSafe/bridge-relay/lib/relay"
	"github.com/ChainSafe/bridge-relay/lib/substrate"
)

type testVoter struct {
	priv stded25519.PrivateKey
	id   [32]byte
}

func newTestVoters(t *testing.T, n int) ([]testVoter, grandpa.AuthorityList) {
	t.Helper()

	voters := make([]testVoter, n)
	authorities := make(grandpa.AuthorityList, n)
	for i := range voters {
		pub, priv, err := stded25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		voters[i].priv = priv
		copy(voters[i].id[:], pub)
		authorities[i] = grandpa.Authority{Key: voters[i].id, Weight: 1}
	}
	return voters, authorities
}

// signJustification builds an encoded justification for target signed by
// all given voters.
func signJustification(t *testing.T, target relay.HeaderID, round, setID uint64,
	voters []testVoter) []byte {
	t.Helper()

	precommit := grandpa.Precommit{TargetHash: target.Hash, TargetNumber: target.Number}
	msg, err := grandpa.SignatureMessage(precommit, round, setID)
	require.NoError(t, err)

	justification := &grandpa.Justification{
		Round: round,
		Commit: grandpa.Commit{
			TargetHash:   target.Hash,
			TargetNumber: target.Number,
		},
		VotesAncestries: []types.Header{},
	}
	for _, voter := range voters {
		signed := grandpa.SignedPrecommit{Precommit: precommit, ID: voter.id}
		copy(signed.Signature[:], stded25519.Sign(voter.priv, msg))
		justification.Commit.Precommits = append(justification.Commit.Precommits, signed)
	}

	encoded, err := justification.Encode()
	require.NoError(t, err)
	return encoded
}

type stubStream struct {
	out          chan []byte
	errs         chan error
	unsubscribed bool
}

func newStubStream(justifications ...[]byte) *stubStream {
	out := make(chan []byte, len(justifications)+1)
	for _, j := range justifications {
		out <- j
	}
	return &stubStream{out: out, errs: make(chan error, 1)}
}

func (s *stubStream) Justifications() <-chan []byte { return s.out }
func (s *stubStream) Err() <-chan error             { return s.errs }
func (s *stubStream) Unsubscribe()                  { s.unsubscribed = true }

// stubChain is an in-memory ChainClient.
type stubChain struct {
	headers     map[types.Hash]*types.Header
	authorities map[types.Hash]grandpa.AuthorityList
	storage     map[string][]byte
	stream      substrate.JustificationStream
}

func newStubChain() *stubChain {
	return &stubChain{
		headers:     make(map[types.Hash]*types.Header),
		authorities: make(map[types.Hash]grandpa.AuthorityList),
		storage:     make(map[string][]byte),
	}
}

func (c *stubChain) addHeader(t *testing.T, header *types.Header) relay.HeaderID {
	t.Helper()

	id, err := relay.HeaderIDOf(header)
	require.NoError(t, err)
	c.headers[id.Hash] = header
	return id
}

func (c *stubChain) setStorage(key types.StorageKey, value []byte) {
	c.storage[string(key)] = value
}

func (c *stubChain) HeaderByHash(hash types.Hash) (*types.Header, error) {
	header, ok := c.headers[hash]
	if !ok {
		return nil, errors.New("header not found")
	}
	return header, nil
}

func (c *stubChain) GrandpaAuthorities(hash types.Hash) (grandpa.AuthorityList, error) {
	authorities, ok := c.authorities[hash]
	if !ok {
		return nil, errors.New("authorities not found")
	}
	return authorities, nil
}

func (c *stubChain) RawStorageValue(key types.StorageKey, _ types.Hash) ([]byte, error) {
	return c.storage[string(key)], nil
}

func (c *stubChain) RawStorageValueLatest(key types.StorageKey) ([]byte, error) {
	return c.storage[string(key)], nil
}

func (c *stubChain) SubscribeJustifications(_ context.Context) (substrate.JustificationStream, error) {
	if c.stream == nil {
		return nil, errors.New("no stream configured")
	}
	return c.stream, nil
}

func encodeAuthoritySet(t *testing.T, set grandpa.AuthoritySet) []byte {
	t.Helper()

	encoded, err := codec.Encode(set)
	require.NoError(t, err)
	return encoded
}
