// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package resolver

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Resolution is a result of anchor resolution: Resolved, Ambiguous or Orphan.
type Resolution interface {
	resolution()
}

// Resolved defines that anchor matches exactly one indexed message.
type Resolved struct {
	TxID chainhash.Hash
}

// Ambiguous defines that anchor matches several indexed messages, no candidate is preferred.
type Ambiguous struct {
	Candidates []chainhash.Hash
}

// Orphan defines that anchor matches no indexed message. Parent may be
// not yet indexed as well as never existing.
type Orphan struct{}

func (Resolved) resolution()  {}
func (Ambiguous) resolution() {}
func (Orphan) resolution()    {}

// Summary describes resolution in transport friendly form.
type Summary struct {
	ResolvedTxID *string  `json:"resolved_txid"`
	IsAmbiguous  bool     `json:"is_ambiguous"`
	IsOrphan     bool     `json:"is_orphan"`
	Candidates   []string `json:"candidates,omitempty"`
}

// Summarize converts resolution into Summary.
func Summarize(res Resolution) Summary {
	switch res := res.(type) {
	case Resolved:
		txid := res.TxID.String()
		return Summary{ResolvedTxID: &txid}
	case Ambiguous:
		candidates := make([]string, 0, len(res.Candidates))
		for _, candidate := range res.Candidates {
			candidates = append(candidates, candidate.String())
		}

		return Summary{IsAmbiguous: true, Candidates: candidates}
	default:
		return Summary{IsOrphan: true}
	}
}
