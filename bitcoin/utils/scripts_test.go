// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/anchor/bitcoin/utils"
)

func TestAppendPush(t *testing.T) {
	tests := []struct {
		size   int
		header string
	}{
		{0, "00"},
		{1, "01"},
		{75, "4b"},
		{76, "4c4c"},
		{255, "4cff"},
		{256, "4d0001"},
		{65535, "4dffff"},
	}

	for _, test := range tests {
		data := bytes.Repeat([]byte{0x05}, test.size)
		script, err := utils.AppendPush(nil, data)
		require.NoError(t, err)

		header, err := hex.DecodeString(test.header)
		require.NoError(t, err)
		require.Equal(t, header, script[:len(header)])
		require.Equal(t, data, script[len(header):])
	}

	_, err := utils.AppendPush(nil, make([]byte, 65536))
	require.ErrorIs(t, err, utils.ErrDataPushTooLarge)

	// single small byte stays a data push.
	script, err := utils.AppendPush(nil, []byte{0x05})
	require.NoError(t, err)
	disasm, err := txscript.DisasmString(script)
	require.NoError(t, err)
	require.Equal(t, "05", disasm)
}

func TestAppendDataPushes(t *testing.T) {
	data := bytes.Repeat([]byte{0xab}, 2*utils.MaxDataPushLen+1)
	script, err := utils.AppendDataPushes([]byte{txscript.OP_FALSE}, data)
	require.NoError(t, err)

	pushes := make([][]byte, 0)
	tokenizer := txscript.MakeScriptTokenizer(0, script[1:])
	for tokenizer.Next() {
		pushes = append(pushes, tokenizer.Data())
	}
	require.NoError(t, tokenizer.Err())
	require.Len(t, pushes, 3)
	require.Len(t, pushes[0], utils.MaxDataPushLen)
	require.Len(t, pushes[1], utils.MaxDataPushLen)
	require.Len(t, pushes[2], 1)
	require.Equal(t, data, bytes.Join(pushes, nil))
}

func TestCeilQuotient(t *testing.T) {
	require.Equal(t, 0, utils.CeilQuotient(0, 520))
	require.Equal(t, 1, utils.CeilQuotient(1, 520))
	require.Equal(t, 1, utils.CeilQuotient(520, 520))
	require.Equal(t, 2, utils.CeilQuotient(521, 520))
}

func TestTaprootAddresses(t *testing.T) {
	privateKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	script := []byte{txscript.OP_TRUE}
	scriptAddress, err := utils.NewTaprootAddressFromScripts(&chaincfg.RegressionNetParams, privateKey.PubKey(), script)
	require.NoError(t, err)

	keyOnlyAddress, err := utils.NewTaprootKeyOnlyAddress(&chaincfg.RegressionNetParams, privateKey.PubKey())
	require.NoError(t, err)
	require.NotEqual(t, scriptAddress.String(), keyOnlyAddress.String())

	pkScript, err := utils.PayToAddressScript(scriptAddress.String(), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	require.Len(t, pkScript, 34)
	require.Equal(t, byte(txscript.OP_1), pkScript[0])

	_, err = utils.PayToAddressScript(scriptAddress.String(), &chaincfg.MainNetParams)
	require.Error(t, err)

	_, err = utils.NewTapScriptTreeFromRawScripts()
	require.Error(t, err)
}
