// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package finality

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ChainSafe/bridge-relay/lib/relay"
	"github.com/ChainSafe/bridge-relay/lib/substrate"
)

var (
	bestSubmittedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge_finality",
		Name:      "best_submitted_block",
		Help:      "number of the best source block whose finality proof was submitted",
	}, []string{"direction"})
	proofsSkippedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge_finality",
		Name:      "proofs_skipped",
		Help:      "count of skipped finality proofs (stale or pallet halted)",
	}, []string{"direction"})
)

// Submitter submits a finality proof to the target chain.
type Submitter interface {
	SubmitFinalityProof(ctx context.Context, header relay.HeaderID, proof []byte) error
}

// LoopConfig wires one finality sync direction.
type LoopConfig struct {
	Engine    Engine
	Source    ChainClient
	Target    ChainClient
	Submitter Submitter
	// Direction labels this loop's metrics so that loops syncing
	// opposite directions do not share a series.
	Direction string
	// ReconnectDelay overrides relay.ReconnectDelay when non-zero.
	ReconnectDelay time.Duration
}

func (cfg *LoopConfig) reconnectDelay() time.Duration {
	if cfg.ReconnectDelay != 0 {
		return cfg.ReconnectDelay
	}
	return relay.ReconnectDelay
}

// Run drives one finality sync direction until the context is cancelled:
// it subscribes to the source's finality proofs, skips stale ones and
// submits the rest to the target, reconnecting with a delay whenever the
// stream drops.
func Run(ctx context.Context, cfg LoopConfig) error {
	var bestSubmitted *relay.HeaderID

	for {
		stream, err := cfg.Engine.FinalityProofs(ctx, cfg.Source)
		if err != nil {
			logger.Warn("failed to open finality proof stream", "err", err)
			if err := sleep(ctx, cfg.reconnectDelay()); err != nil {
				return err
			}
			continue
		}

		err = consumeProofs(ctx, cfg, stream, &bestSubmitted)
		stream.Unsubscribe()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("finality proof stream died, reconnecting", "err", err)
		if err := sleep(ctx, cfg.reconnectDelay()); err != nil {
			return err
		}
	}
}

// consumeProofs processes one subscription's lifetime. It returns the
// stream error, or nil if the stream closed quietly.
func consumeProofs(ctx context.Context, cfg LoopConfig,
	stream substrate.JustificationStream, bestSubmitted **relay.HeaderID) error {
	for {
		select {
		case proof, ok := <-stream.Justifications():
			if !ok {
				return nil
			}
			submitProof(ctx, cfg, proof, bestSubmitted)
		case err := <-stream.Err():
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func submitProof(ctx context.Context, cfg LoopConfig, proof []byte, bestSubmitted **relay.HeaderID) {
	target, err := cfg.Engine.ProofTarget(proof)
	if err != nil {
		logger.Warn("discarding undecodable finality proof", "err", err)
		return
	}

	if *bestSubmitted != nil && target.Number <= (*bestSubmitted).Number {
		logger.Trace("skipping stale finality proof", "block", target.Number,
			"best", (*bestSubmitted).Number)
		proofsSkippedCounter.WithLabelValues(cfg.Direction).Inc()
		return
	}

	halted, err := cfg.Engine.IsHalted(cfg.Target)
	if err != nil {
		logger.Warn("failed to read pallet operating mode", "err", err)
		return
	}
	if halted {
		logger.Warn("target pallet is halted, not submitting", "block", target.Number)
		proofsSkippedCounter.WithLabelValues(cfg.Direction).Inc()
		return
	}

	optimized := cfg.Engine.OptimizeProof(cfg.Target, target, proof)
	if err := cfg.Submitter.SubmitFinalityProof(ctx, target, optimized); err != nil {
		logger.Warn("failed to submit finality proof", "block", target.Number, "err", err)
		return
	}

	logger.Info("submitted finality proof", "block", target.Number, "hash", target.Hash)
	*bestSubmitted = &target
	bestSubmittedGauge.WithLabelValues(cfg.Direction).Set(float64(target.Number))
}

// sleep waits for the delay or the context, whichever ends first.
func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
