// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package anchor_test

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
)

func TestAnchor(t *testing.T) {
	t.Run("TxIDToPrefix", func(t *testing.T) {
		prefix, err := anchor.TxIDToPrefix(testTxID)
		require.NoError(t, err)
		// display hex ends with ...53285746, internal order starts with 46572853.
		require.Equal(t, "46572853f7ebd64e", prefix.String())

		hash, err := chainhash.NewHashFromStr(testTxID)
		require.NoError(t, err)
		require.Equal(t, prefix, anchor.PrefixFromHash(hash))
	})

	t.Run("invalid txid", func(t *testing.T) {
		for _, txid := range []string{"", "00", strings.Repeat("z", 64), strings.Repeat("0", 62), strings.Repeat("0", 66)} {
			_, err := anchor.TxIDToPrefix(txid)
			require.ErrorIs(t, err, anchor.ErrInvalidTxID, txid)

			_, err = anchor.NewAnchor(txid, 0)
			require.ErrorIs(t, err, anchor.ErrInvalidTxID, txid)
		}
	})

	t.Run("AnchorMatchesTxID", func(t *testing.T) {
		a := mustAnchor(t, testTxID, 4)
		require.True(t, anchor.AnchorMatchesTxID(a, testTxID))
		require.False(t, anchor.AnchorMatchesTxID(a, testOtherTxID))
		require.False(t, anchor.AnchorMatchesTxID(a, "not-a-txid"))

		// differs only in the display-first byte, which is the last internal byte: still a prefix match.
		sameInternalPrefix := "00" + testTxID[2:]
		require.True(t, anchor.AnchorMatchesTxID(a, sameInternalPrefix))

		// differs in the display-last byte, which is the first internal byte.
		otherInternalPrefix := testTxID[:62] + "47"
		require.False(t, anchor.AnchorMatchesTxID(a, otherInternalPrefix))

		hash, err := chainhash.NewHashFromStr(testTxID)
		require.NoError(t, err)
		require.True(t, a.MatchesHash(hash))
		require.Equal(t, a, anchor.NewAnchorFromHash(hash, 4))
	})

	t.Run("ParsePrefix", func(t *testing.T) {
		prefix, err := anchor.ParsePrefix("46572853f7ebd64e")
		require.NoError(t, err)
		require.Equal(t, mustAnchor(t, testTxID, 0).TxIDPrefix, prefix)

		_, err = anchor.ParsePrefix("4657")
		require.ErrorIs(t, err, anchor.ErrInvalidTxID)
		_, err = anchor.ParsePrefix("zz572853f7ebd64e")
		require.ErrorIs(t, err, anchor.ErrInvalidTxID)
	})

	t.Run("String", func(t *testing.T) {
		require.Equal(t, "46572853f7ebd64e:7", mustAnchor(t, testTxID, 7).String())
	})
}
