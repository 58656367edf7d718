// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package substrate is a thin RPC client for the bridged Substrate chains,
// covering the handful of calls the relay needs: headers, raw storage,
// runtime API calls and the GRANDPA justification stream.
package substrate

import (
	"fmt"

	log "github.com/ChainSafe/log15"
	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"

	"github.com/ChainSafe/bridge-relay/lib/grandpa"
	"github.com/ChainSafe/bridge-relay/lib/relay"
)

var logger = log.New("pkg", "substrate")

// Client wraps a GSRPC connection to one chain.
type Client struct {
	api  *gsrpc.SubstrateAPI
	name string
}

// NewClient connects to the chain's websocket endpoint. Connection
// failures are wrapped as relay.ConnectionError so callers reconnect
// rather than bail.
func NewClient(url, name string) (*Client, error) {
	api, err := gsrpc.NewSubstrateAPI(url)
	if err != nil {
		return nil, relay.WrapConnectionError(fmt.Errorf("connecting to %s: %w", name, err))
	}
	logger.Info("connected", "chain", name, "url", url)
	return &Client{api: api, name: name}, nil
}

// Name returns the chain name the client was created with.
func (c *Client) Name() string {
	return c.name
}

// HeaderByHash fetches the header with the given hash.
func (c *Client) HeaderByHash(hash types.Hash) (*types.Header, error) {
	header, err := c.api.RPC.Chain.GetHeader(hash)
	if err != nil {
		return nil, relay.WrapConnectionError(fmt.Errorf("fetching header %s: %w", hash.Hex(), err))
	}
	return header, nil
}

// GrandpaAuthorities reads the GRANDPA authority list active at the given
// block through the GrandpaApi_grandpa_authorities runtime call.
func (c *Client) GrandpaAuthorities(hash types.Hash) (grandpa.AuthorityList, error) {
	var res string
	err := c.api.Client.Call(&res, "state_call", "GrandpaApi_grandpa_authorities", "0x", hash.Hex())
	if err != nil {
		return nil, relay.WrapConnectionError(fmt.Errorf("calling grandpa_authorities: %w", err))
	}

	raw, err := codec.HexDecodeString(res)
	if err != nil {
		return nil, fmt.Errorf("decoding grandpa_authorities response: %w", err)
	}

	var authorities grandpa.AuthorityList
	if err := codec.Decode(raw, &authorities); err != nil {
		return nil, fmt.Errorf("decoding authority list: %w", err)
	}
	return authorities, nil
}

// RawStorageValue reads the raw storage value under key at the given
// block, or nil if the key is unoccupied.
func (c *Client) RawStorageValue(key types.StorageKey, hash types.Hash) ([]byte, error) {
	data, err := c.api.RPC.State.GetStorageRaw(key, hash)
	if err != nil {
		return nil, relay.WrapConnectionError(fmt.Errorf("reading storage: %w", err))
	}
	if data == nil {
		return nil, nil
	}
	return *data, nil
}

// StorageValue reads and decodes the storage value under key at the given
// block. It reports false without touching target if the key is
// unoccupied.
func (c *Client) StorageValue(key types.StorageKey, hash types.Hash, target interface{}) (bool, error) {
	raw, err := c.RawStorageValue(key, hash)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := codec.Decode(raw, target); err != nil {
		return false, fmt.Errorf("decoding storage value: %w", err)
	}
	return true, nil
}

// RawStorageValueLatest reads the raw storage value under key at the best
// known block, or nil if the key is unoccupied.
func (c *Client) RawStorageValueLatest(key types.StorageKey) ([]byte, error) {
	data, err := c.api.RPC.State.GetStorageRawLatest(key)
	if err != nil {
		return nil, relay.WrapConnectionError(fmt.Errorf("reading storage: %w", err))
	}
	if data == nil {
		return nil, nil
	}
	return *data, nil
}
