// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// ExtractSigningHints returns map with helping keys and values stored in PSBT unknowns:
// input indexes to sign for input keys, and [output index, carrier] for CarrierOutputHelpingKey.
func ExtractSigningHints(data []byte) (map[InputsHelpingKey][]int, error) {
	var result = make(map[InputsHelpingKey][]int, 3)
	p, err := psbt.NewFromRawBytes(bytes.NewBuffer(data), false)
	if err != nil {
		return nil, err
	}

	for _, unknown := range p.Unknowns {
		key, err := InputsHelpingKeyFromBytes(unknown.Key)
		if err != nil {
			return nil, err
		}

		result[key] = make([]int, len(unknown.Value))
		for idx, val := range unknown.Value {
			result[key][idx] = int(val)
		}
	}

	return result, nil
}

// signingHints converts collected indexes into PSBT unknowns ordered by key.
func signingHints(hints map[InputsHelpingKey][]byte) []*psbt.Unknown {
	unknowns := make([]*psbt.Unknown, 0, len(hints))
	for _, key := range []InputsHelpingKey{TaprootInputsHelpingKey, PaymentInputsHelpingKey, CarrierOutputHelpingKey} {
		value, ok := hints[key]
		if !ok {
			continue
		}

		unknowns = append(unknowns, &psbt.Unknown{Key: key.Bytes(), Value: value})
	}

	return unknowns
}
