// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package messages

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ChainSafe/bridge-relay/lib/relay"
)

var (
	bestAtSourceGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge_messages",
		Name:      "best_at_source",
		Help:      "latest message nonce generated at the source chain",
	}, []string{"lane"})
	bestAtTargetGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge_messages",
		Name:      "best_at_target",
		Help:      "latest message nonce delivered to the target chain",
	}, []string{"lane"})
)

// SourceClient reads the message-emitting side of a lane.
type SourceClient interface {
	// State returns the source chain's view of itself and of the target.
	State(ctx context.Context) (relay.ClientState, error)
	// LatestNonces reads the lane's nonces as of the given source header.
	LatestNonces(ctx context.Context, at relay.HeaderID) (ClientNonces, error)
	// GenerateProof builds the delivery proof of the nonce range against
	// the given source header.
	GenerateProof(ctx context.Context, at relay.HeaderID, nonces relay.InclusiveRange,
		params ProofParameters) ([]byte, error)
}

// TargetClient reads and writes the delivery side of a lane.
type TargetClient interface {
	// State returns the target chain's view of itself and of the source.
	State(ctx context.Context) (relay.ClientState, error)
	// LatestNonces reads the lane's delivered nonces as of the given
	// target header.
	LatestNonces(ctx context.Context, at relay.HeaderID) (ClientNonces, error)
	// SubmitProof submits one delivery transaction.
	SubmitProof(ctx context.Context, generatedAt relay.HeaderID,
		nonces relay.InclusiveRange, proof []byte) error
}

// RaceConfig wires one lane's delivery race.
type RaceConfig struct {
	Lane   relay.LaneID
	Source SourceClient
	Target TargetClient
	// Strategy defaults to NewBasicStrategy(0).
	Strategy *BasicStrategy
	// SourcePollInterval and TargetPollInterval default to 5s and 10s.
	SourcePollInterval time.Duration
	TargetPollInterval time.Duration
}

func (cfg *RaceConfig) withDefaults() RaceConfig {
	out := *cfg
	if out.Strategy == nil {
		out.Strategy = NewBasicStrategy(0)
	}
	if out.SourcePollInterval == 0 {
		out.SourcePollInterval = 5 * time.Second
	}
	if out.TargetPollInterval == 0 {
		out.TargetPollInterval = 10 * time.Second
	}
	return out
}

// race owns one lane's RaceState and serializes all strategy calls.
type race struct {
	cfg      RaceConfig
	state    RaceState
	strategy *BasicStrategy

	sourceRetry   *backoff.Backoff
	targetRetry   *backoff.Backoff
	sourceRetryAt time.Time
	targetRetryAt time.Time
}

// Run drives one lane until the context is cancelled. All client calls
// happen on this goroutine; failures back off per client without stalling
// the other side.
func Run(ctx context.Context, cfg RaceConfig) error {
	r := &race{
		cfg:         cfg.withDefaults(),
		sourceRetry: relay.NewBackoff(),
		targetRetry: relay.NewBackoff(),
	}
	r.strategy = r.cfg.Strategy

	logger.Info("starting message race", "lane", r.cfg.Lane)

	sourceTicker := time.NewTicker(r.cfg.SourcePollInterval)
	defer sourceTicker.Stop()
	targetTicker := time.NewTicker(r.cfg.TargetPollInterval)
	defer targetTicker.Stop()

	for {
		select {
		case <-sourceTicker.C:
			if time.Now().Before(r.sourceRetryAt) {
				continue
			}
			r.pollSource(ctx)
			r.deliver(ctx)
		case <-targetTicker.C:
			if time.Now().Before(r.targetRetryAt) {
				continue
			}
			r.pollTarget(ctx)
			r.deliver(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *race) pollSource(ctx context.Context) {
	state, err := r.cfg.Source.State(ctx)
	if err != nil {
		r.sourceFailed(err)
		return
	}
	r.state.SourceState = &state

	nonces, err := r.cfg.Source.LatestNonces(ctx, state.BestFinalizedSelf)
	if err != nil {
		r.sourceFailed(err)
		return
	}

	r.strategy.SourceNoncesUpdated(state.BestFinalizedSelf, nonces)
	bestAtSourceGauge.WithLabelValues(r.cfg.Lane.String()).Set(float64(r.strategy.BestAtSource()))
	r.sourceRetry.Reset()
	r.sourceRetryAt = time.Time{}
}

func (r *race) pollTarget(ctx context.Context) {
	state, err := r.cfg.Target.State(ctx)
	if err != nil {
		r.targetFailed(err)
		return
	}
	r.state.TargetState = &state

	nonces, err := r.cfg.Target.LatestNonces(ctx, state.BestSelf)
	if err != nil {
		r.targetFailed(err)
		return
	}

	r.strategy.TargetNoncesUpdated(nonces, &r.state)
	bestAtTargetGauge.WithLabelValues(r.cfg.Lane.String()).Set(float64(r.strategy.BestAtTarget()))
	r.targetRetry.Reset()
	r.targetRetryAt = time.Time{}
}

func (r *race) sourceFailed(err error) {
	delay := r.sourceRetry.Duration()
	r.sourceRetryAt = time.Now().Add(delay)
	logger.Warn("source client call failed", "lane", r.cfg.Lane, "retry_in", delay, "err", err)
}

func (r *race) targetFailed(err error) {
	delay := r.targetRetry.Duration()
	r.targetRetryAt = time.Now().Add(delay)
	logger.Warn("target client call failed", "lane", r.cfg.Lane, "retry_in", delay, "err", err)
}

// deliver selects, proves and submits at most one nonce range. A failed
// generation or submission clears the selection so the next tick retries
// from fresh chain state.
func (r *race) deliver(ctx context.Context) {
	if r.state.NoncesToSubmit == nil {
		nonces, params, ok := r.strategy.SelectNoncesToDeliver(&r.state)
		if !ok {
			return
		}
		r.state.NoncesToSubmit = &SelectedNonces{
			At:     *r.state.TargetState.BestFinalizedPeerAtBestSelf,
			Nonces: nonces,
			Proof:  params,
		}
		logger.Info("selected nonces to deliver", "lane", r.cfg.Lane,
			"nonces", nonces, "at", r.state.NoncesToSubmit.At)
	}

	selected := r.state.NoncesToSubmit
	proof, err := r.cfg.Source.GenerateProof(ctx, selected.At, selected.Nonces, selected.Proof)
	if err != nil {
		logger.Warn("failed to generate delivery proof", "lane", r.cfg.Lane,
			"nonces", selected.Nonces, "err", err)
		r.state.NoncesToSubmit = nil
		r.sourceFailed(err)
		return
	}

	err = r.cfg.Target.SubmitProof(ctx, selected.At, selected.Nonces, proof)
	r.state.NoncesToSubmit = nil
	if err != nil {
		logger.Warn("failed to submit delivery proof", "lane", r.cfg.Lane,
			"nonces", selected.Nonces, "err", err)
		r.targetFailed(err)
		return
	}

	submitted := selected.Nonces
	r.state.NoncesSubmitted = &submitted
	logger.Info("submitted delivery proof", "lane", r.cfg.Lane, "nonces", submitted)
}
