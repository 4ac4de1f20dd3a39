// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/carriers"
	"github.com/BoostyLabs/anchor/bitcoin/txbuilder"
)

func TestMessageTx(t *testing.T) {
	txBuilder := txbuilder.NewTxBuilder(&chaincfg.TestNet3Params, nil)

	t.Run("reply", func(t *testing.T) {
		messageTx := txbuilder.NewMessageTx(anchor.KindText).
			AddInput(testUTXO(60000)).
			AddInputs(testUTXO(40000)).
			AddAnchor(testOtherTxID, 2).
			ReplyTo(testTxID, 1).
			WithBody([]byte("gm")).
			WithChangeAddress(testTaprootAddress).
			WithFeeRate(2)
		require.NoError(t, messageTx.Err())

		message := messageTx.Message()
		require.Len(t, message.Anchors, 2)
		parent, ok := message.CanonicalParent()
		require.True(t, ok)
		require.True(t, anchor.AnchorMatchesTxID(parent, testTxID))
		require.EqualValues(t, 1, parent.Vout)
		require.True(t, anchor.AnchorMatchesTxID(message.Anchors[1], testOtherTxID))

		result, err := messageTx.Build(txBuilder)
		require.NoError(t, err)
		require.Equal(t, carriers.OpReturn, result.Carrier)
		require.EqualValues(t, 2*(10+68*2+34*2), result.Fee.Int64())

		decoded, err := anchor.Decode(result.Payload)
		require.NoError(t, err)
		require.Equal(t, message.Anchors, decoded.Anchors)
		require.Equal(t, []byte("gm"), decoded.Body)
	})

	t.Run("default fee rate and forced carrier", func(t *testing.T) {
		result, err := txbuilder.NewMessageTx(anchor.KindState).
			AddInput(testUTXO(100000)).
			WithBody([]byte("state")).
			WithChangeAddress(testTaprootAddress).
			WithCarrier(carriers.WitnessData).
			WithRevealPubKey(testPubKey).
			WithInputsPubKey(testPubKey).
			Build(txBuilder)
		require.NoError(t, err)
		require.Equal(t, carriers.WitnessData, result.Carrier)
		require.EqualValues(t, 146, result.Fee.Int64())
	})

	t.Run("first error is sticky", func(t *testing.T) {
		messageTx := txbuilder.NewMessageTx(anchor.KindText).
			ReplyTo("zz", 0).
			AddInput(testUTXO(100000)).
			ReplyTo(testTxID, 0).
			WithChangeAddress(testTaprootAddress)
		require.ErrorIs(t, messageTx.Err(), anchor.ErrInvalidTxID)
		require.Empty(t, messageTx.Message().Anchors)

		_, err := messageTx.Build(txBuilder)
		require.ErrorIs(t, err, anchor.ErrInvalidTxID)
	})

	t.Run("inputs selection", func(t *testing.T) {
		result, err := txbuilder.NewMessageTx(anchor.KindText).
			AddInputs(testUTXO(60000), testUTXO(40000)).
			WithBody([]byte("gm")).
			WithChangeAddress(testTaprootAddress).
			WithInputsSelection().
			Build(txBuilder)
		require.NoError(t, err)
		require.Len(t, result.UsedInputs, 1)
		require.EqualValues(t, 40000, result.UsedInputs[0].Amount.Int64())
		require.EqualValues(t, 146, result.Fee.Int64())
		require.EqualValues(t, 39854, result.Change.Int64())
		require.Len(t, result.Tx.TxIn, 1)
	})

	t.Run("no inputs", func(t *testing.T) {
		_, err := txbuilder.NewMessageTx(anchor.KindText).
			WithChangeAddress(testTaprootAddress).
			Build(txBuilder)
		require.ErrorIs(t, err, txbuilder.ErrNoUTXOs)
	})
}
