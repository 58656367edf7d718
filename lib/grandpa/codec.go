// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package grandpa

import (
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
)

// scaleDecode decodes SCALE bytes that came off the wire. The GSRPC
// decoder panics on some truncated inputs instead of returning an
// error, so panics are recovered here.
func scaleDecode(encoded []byte, target interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decoding malformed input: %v", r)
		}
	}()
	return codec.Decode(encoded, target)
}
