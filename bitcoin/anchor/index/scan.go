// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package index

import (
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/carriers"
	"github.com/BoostyLabs/anchor/bitcoin/ord/inscriptions"
)

// witnessMessageVout defines output the witness carried message is attributed to.
const witnessMessageVout uint32 = 0

// ScanTransaction returns messages carried by transaction.
// Output carried messages (OP_RETURN, stamps) are indexed at their output index.
// The first witness carried message (inscription, witness envelope, annex) is
// attributed to output 0 unless output 0 carries a message itself.
func ScanTransaction(tx *wire.MsgTx, height *int64, createdAt time.Time) []IndexedMessage {
	txid := tx.TxHash()

	var (
		messages []IndexedMessage
		vouts    = make(map[uint32]struct{})
	)
	for vout, out := range tx.TxOut {
		payload, ok := outputPayload(out.PkScript)
		if !ok {
			continue
		}

		message, err := FromPayload(txid, uint32(vout), payload, height, createdAt)
		if err != nil {
			continue
		}

		messages = append(messages, message)
		vouts[uint32(vout)] = struct{}{}
	}

	if _, ok := vouts[witnessMessageVout]; ok || len(tx.TxOut) == 0 {
		return messages
	}

	for _, in := range tx.TxIn {
		payload, ok := WitnessPayload(in.Witness)
		if !ok {
			continue
		}

		message, err := FromPayload(txid, witnessMessageVout, payload, height, createdAt)
		if err != nil {
			continue
		}

		return append(messages, message)
	}

	return messages
}

// outputPayload returns protocol payload held by output script.
func outputPayload(pkScript []byte) ([]byte, bool) {
	if payload := anchor.ParseOpReturn(pkScript); anchor.IsAnchorPayload(payload) {
		return payload, true
	}

	if payload, err := carriers.ParseStampsScript(pkScript); err == nil && anchor.IsAnchorPayload(payload) {
		return payload, true
	}

	return nil, false
}

// WitnessPayload returns protocol payload held by taproot witness: annex,
// inscription or raw envelope in the revealed tapscript.
func WitnessPayload(witness wire.TxWitness) ([]byte, bool) {
	if len(witness) < 2 {
		return nil, false
	}

	last := witness[len(witness)-1]
	if len(last) != 0 && last[0] == carriers.AnnexTag {
		if payload, err := carriers.ParseAnnex(last); err == nil && anchor.IsAnchorPayload(payload) {
			return payload, true
		}

		witness = witness[:len(witness)-1]
		if len(witness) < 2 {
			return nil, false
		}
	}

	// script path spend: [..., tapscript, control block].
	tapscript := witness[len(witness)-2]
	if inscription, err := inscriptions.ParseInscriptionFromWitnessData(tapscript); err == nil {
		if payload, ok := inscription.AnchorPayload(); ok {
			return payload, true
		}
	}

	if payload, err := carriers.ParseWitnessEnvelope(tapscript); err == nil && anchor.IsAnchorPayload(payload) {
		return payload, true
	}

	return nil, false
}
