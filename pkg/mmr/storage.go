// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package mmr

import "hash"

// MemStorage is an in-memory MMRStorage.
type MemStorage struct {
	storage map[uint64]MMRElement
}

// NewMemStorage returns an empty in-memory storage.
func NewMemStorage() *MemStorage {
	return &MemStorage{
		storage: make(map[uint64]MMRElement),
	}
}

func (s *MemStorage) getElement(pos uint64) (*MMRElement, error) {
	if element, ok := s.storage[pos]; ok {
		return &element, nil
	}
	return nil, nil
}

func (s *MemStorage) append(pos uint64, elements []MMRElement) error {
	for i, element := range elements {
		s.storage[pos+uint64(i)] = element
	}
	return nil
}

// NewInMemMMR returns an empty MMR backed by a MemStorage.
func NewInMemMMR(hasher hash.Hash) *MMR {
	return NewMMR(0, NewMemStorage(), hasher)
}
