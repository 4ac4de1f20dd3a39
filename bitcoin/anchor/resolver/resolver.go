// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package resolver

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/index"
)

// Resolver resolves anchors into messages and builds reply threads.
type Resolver struct {
	index  index.Index
	budget Budget
	logger *slog.Logger
}

// Option configures Resolver.
type Option func(*Resolver)

// WithLogger sets logger, slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithDefaultBudget sets budget used for zero fields of the requested one.
func WithDefaultBudget(budget Budget) Option {
	return func(r *Resolver) {
		r.budget = budget.withDefaults(DefaultBudget)
	}
}

// New is a constructor for Resolver.
func New(idx index.Index, opts ...Option) *Resolver {
	r := &Resolver{
		index:  idx,
		budget: DefaultBudget,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// DefaultBudget returns budget used for zero fields of the requested one.
func (r *Resolver) DefaultBudget() Budget {
	return r.budget
}

// ResolveAnchor resolves anchor built from txid prefix and vout.
func (r *Resolver) ResolveAnchor(ctx context.Context, prefix anchor.Prefix, vout byte) (Resolution, error) {
	snapshot, err := r.index.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = snapshot.Close() }()

	ref := anchor.Anchor{TxIDPrefix: prefix, Vout: vout}
	candidates, err := snapshot.MessagesAt(ctx, []anchor.Anchor{ref})
	if err != nil {
		return nil, err
	}

	return classify(candidates[ref]), nil
}

// classify returns resolution for messages matched by anchor.
func classify(candidates []index.IndexedMessage) Resolution {
	switch len(candidates) {
	case 0:
		return Orphan{}
	case 1:
		return Resolved{TxID: candidates[0].TxID}
	}

	txids := make([]chainhash.Hash, 0, len(candidates))
	for _, candidate := range candidates {
		txids = append(txids, candidate.TxID)
	}

	return Ambiguous{Candidates: txids}
}
