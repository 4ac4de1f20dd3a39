// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
	"math/big"
)

// ErrInsufficientNativeBalance defines that provided utxos do not cover required bitcoin amount.
var ErrInsufficientNativeBalance = errors.New("insufficient native balance")

// ErrInvalidUTXOAmount defines that there are not enough utxos to select from.
var ErrInvalidUTXOAmount = errors.New("invalid utxo amount")

// UTXO describes unspent transaction output data.
type UTXO struct {
	TxHash  string   // transaction id in display (reversed) hex.
	Index   uint32   // output index in transaction outputs.
	Amount  *big.Int // in Satoshi.
	Script  []byte   // ScriptPubKey.
	Address string   // output recipient address.
}

// TotalAmount returns sum of utxos amounts in satoshi.
func TotalAmount(utxos []UTXO) *big.Int {
	total := big.NewInt(0)
	for _, utxo := range utxos {
		if utxo.Amount != nil {
			total.Add(total, utxo.Amount)
		}
	}

	return total
}
