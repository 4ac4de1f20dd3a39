// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package anchor

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/BoostyLabs/anchor/internal/reverse"
)

// ErrInvalidTxID defines that transaction id is malformed.
var ErrInvalidTxID = errors.New("invalid txid")

// Prefix describes first bytes of the transaction id in internal byte order.
type Prefix [PrefixSize]byte

// String returns prefix as hexadecimal string.
func (p Prefix) String() string {
	return hex.EncodeToString(p[:])
}

// ParsePrefix parses prefix from hexadecimal string.
func ParsePrefix(s string) (Prefix, error) {
	var prefix Prefix
	data, err := hex.DecodeString(s)
	if err != nil || len(data) != PrefixSize {
		return prefix, fmt.Errorf("%w: prefix %q", ErrInvalidTxID, s)
	}

	copy(prefix[:], data)

	return prefix, nil
}

// Anchor describes compressed reference from message to the transaction output.
type Anchor struct {
	TxIDPrefix Prefix
	Vout       byte
}

// NewAnchor creates anchor pointing to provided transaction output, txid is expected in display hex.
func NewAnchor(txid string, vout byte) (Anchor, error) {
	prefix, err := TxIDToPrefix(txid)
	if err != nil {
		return Anchor{}, err
	}

	return Anchor{TxIDPrefix: prefix, Vout: vout}, nil
}

// NewAnchorFromHash creates anchor pointing to provided transaction output.
func NewAnchorFromHash(txid *chainhash.Hash, vout byte) Anchor {
	return Anchor{TxIDPrefix: PrefixFromHash(txid), Vout: vout}
}

// String returns anchor as "prefix:vout".
func (a Anchor) String() string {
	return fmt.Sprintf("%s:%d", a.TxIDPrefix, a.Vout)
}

// MatchesHash returns true if anchor prefix equals to provided transaction id prefix.
func (a Anchor) MatchesHash(txid *chainhash.Hash) bool {
	return a.TxIDPrefix == PrefixFromHash(txid)
}

// TxIDToPrefix returns prefix of the transaction id provided in display hex.
// Display bytes are reversed into internal order before the prefix is taken.
func TxIDToPrefix(txid string) (Prefix, error) {
	var prefix Prefix
	if len(txid) != chainhash.MaxHashStringSize {
		return prefix, fmt.Errorf("%w: %q", ErrInvalidTxID, txid)
	}

	data, err := hex.DecodeString(txid)
	if err != nil {
		return prefix, fmt.Errorf("%w: %q", ErrInvalidTxID, txid)
	}

	copy(prefix[:], reverse.Bytes(data))

	return prefix, nil
}

// PrefixFromHash returns prefix of the transaction id, chainhash.Hash already keeps internal order.
func PrefixFromHash(txid *chainhash.Hash) Prefix {
	var prefix Prefix
	copy(prefix[:], txid[:PrefixSize])

	return prefix
}

// AnchorMatchesTxID returns true if anchor prefix is the prefix of provided display hex txid.
func AnchorMatchesTxID(anchor Anchor, txid string) bool {
	prefix, err := TxIDToPrefix(txid)
	if err != nil {
		return false
	}

	return bytes.Equal(anchor.TxIDPrefix[:], prefix[:])
}
