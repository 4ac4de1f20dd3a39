// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/anchor/bitcoin/txbuilder"
)

func TestInputsHelpingKey(t *testing.T) {
	tests := []struct {
		bytes []byte
		key   txbuilder.InputsHelpingKey
		err   error
	}{
		{[]byte{0x10}, txbuilder.TaprootInputsHelpingKey, nil},
		{[]byte{0x20}, txbuilder.PaymentInputsHelpingKey, nil},
		{[]byte{0x30}, txbuilder.CarrierOutputHelpingKey, nil},
		{[]byte{}, 0, txbuilder.ErrUnknownInputsHelpingKey},
		{[]byte{0x11}, 0, txbuilder.ErrUnknownInputsHelpingKey},
		{[]byte{0x10, 0x20}, 0, txbuilder.ErrUnknownInputsHelpingKey},
	}
	for _, test := range tests {
		key, err := txbuilder.InputsHelpingKeyFromBytes(test.bytes)
		require.Equal(t, test.err, err)
		require.Equal(t, test.key, key)

		if err == nil {
			require.Equal(t, test.bytes, key.Bytes())
			require.Equal(t, test.bytes[0], key.Byte())
		}
	}
}
