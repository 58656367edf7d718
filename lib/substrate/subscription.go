// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package substrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"

	"github.com/ChainSafe/bridge-relay/lib/relay"
)

// JustificationStream delivers raw SCALE-encoded GRANDPA justifications as
// the chain emits them.
type JustificationStream interface {
	// Justifications is closed when the stream shuts down.
	Justifications() <-chan []byte
	// Err delivers at most one error, after which the stream is dead.
	Err() <-chan error
	Unsubscribe()
}

type justificationStream struct {
	unsubscribe func()
	out         chan []byte
	errs        chan error
	done        chan struct{}
	closeOnce   sync.Once
}

// SubscribeJustifications opens a grandpa_subscribeJustifications
// subscription. The returned stream stays open until Unsubscribe is
// called, the context is cancelled or the transport drops.
func (c *Client) SubscribeJustifications(ctx context.Context) (JustificationStream, error) {
	raw := make(chan string)
	sub, err := c.api.Client.Subscribe(ctx, "grandpa",
		"subscribeJustifications", "unsubscribeJustifications", "justifications", raw)
	if err != nil {
		return nil, relay.WrapConnectionError(fmt.Errorf("subscribing to justifications: %w", err))
	}

	logger.Debug("subscribed to justifications", "chain", c.name)
	return newJustificationStream(ctx, sub.Unsubscribe, raw, sub.Err()), nil
}

func newJustificationStream(ctx context.Context, unsubscribe func(),
	raw <-chan string, subErr <-chan error) *justificationStream {
	stream := &justificationStream{
		unsubscribe: unsubscribe,
		out:         make(chan []byte),
		errs:        make(chan error, 1),
		done:        make(chan struct{}),
	}

	go func() {
		defer close(stream.out)
		for {
			select {
			case encoded, ok := <-raw:
				if !ok {
					return
				}
				justification, err := codec.HexDecodeString(encoded)
				if err != nil {
					stream.errs <- fmt.Errorf("decoding justification notification: %w", err)
					return
				}
				select {
				case stream.out <- justification:
				case <-stream.done:
					return
				case <-ctx.Done():
					return
				}
			case err := <-subErr:
				if err != nil {
					stream.errs <- relay.WrapConnectionError(err)
				}
				return
			case <-stream.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return stream
}

func (s *justificationStream) Justifications() <-chan []byte {
	return s.out
}

func (s *justificationStream) Err() <-chan error {
	return s.errs
}

func (s *justificationStream) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		close(s.done)
	})
}
