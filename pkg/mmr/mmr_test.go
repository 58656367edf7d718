// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package mmr

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMMR(t *testing.T, leafCount int) (*MMR, []MMRElement) {
	t.Helper()

	mmr := NewInMemMMR(sha256.New())
	leaves := make([]MMRElement, leafCount)
	for i := range leaves {
		sum := sha256.Sum256([]byte(fmt.Sprintf("leaf-%d", i)))
		leaves[i] = sum[:]
		_, err := mmr.Push(leaves[i])
		require.NoError(t, err)
	}
	return mmr, leaves
}

func TestRootOnEmpty(t *testing.T) {
	mmr := NewInMemMMR(sha256.New())
	_, err := mmr.Root()
	require.ErrorIs(t, err, errGetRootOnEmpty)
}

func TestPushAndLeafCount(t *testing.T) {
	mmr, _ := buildMMR(t, 11)
	require.Equal(t, uint64(11), mmr.LeafCount())
	require.Equal(t, sizeForLeafCount(11), mmr.size)
}

func TestSingleLeafRoot(t *testing.T) {
	mmr, leaves := buildMMR(t, 1)
	root, err := mmr.Root()
	require.NoError(t, err)
	require.Equal(t, leaves[0], root)
}

func TestLeafPositions(t *testing.T) {
	// the canonical start of the leaf position sequence
	expected := []uint64{0, 1, 3, 4, 7, 8, 10, 11, 15}
	for i, pos := range expected {
		require.Equal(t, pos, leafIndexToPos(uint64(i)), "leaf %d", i)
	}
}

func TestGenerateAndVerifyProof(t *testing.T) {
	for _, leafCount := range []int{1, 2, 3, 4, 7, 11, 64} {
		t.Run(fmt.Sprintf("%d_leaves", leafCount), func(t *testing.T) {
			mmr, leaves := buildMMR(t, leafCount)
			root, err := mmr.Root()
			require.NoError(t, err)

			for i, leaf := range leaves {
				proof, err := mmr.GenerateProof(uint64(i))
				require.NoError(t, err)
				require.True(t, proof.Verify(sha256.New(), root, leaf), "leaf %d", i)
			}
		})
	}
}

func TestVerifyRejectsWrongLeaf(t *testing.T) {
	mmr, leaves := buildMMR(t, 7)
	root, err := mmr.Root()
	require.NoError(t, err)

	proof, err := mmr.GenerateProof(2)
	require.NoError(t, err)

	require.False(t, proof.Verify(sha256.New(), root, leaves[3]))
}

func TestVerifyRejectsTamperedProof(t *testing.T) {
	mmr, leaves := buildMMR(t, 7)
	root, err := mmr.Root()
	require.NoError(t, err)

	proof, err := mmr.GenerateProof(2)
	require.NoError(t, err)
	require.NotEmpty(t, proof.Items)

	proof.Items[0] = append(MMRElement{}, proof.Items[0]...)
	proof.Items[0][0] ^= 0xff
	require.False(t, proof.Verify(sha256.New(), root, leaves[2]))

	// truncated proof
	truncated := &Proof{LeafIndex: 2, LeafCount: 7, Items: nil}
	require.False(t, truncated.Verify(sha256.New(), root, leaves[2]))

	// out-of-range leaf index
	bad := &Proof{LeafIndex: 7, LeafCount: 7}
	require.False(t, bad.Verify(sha256.New(), root, leaves[2]))
}

func TestGenerateProofOutOfRange(t *testing.T) {
	mmr, _ := buildMMR(t, 3)
	_, err := mmr.GenerateProof(3)
	require.ErrorIs(t, err, ErrLeafOutOfRange)
}
