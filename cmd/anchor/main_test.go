// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/carriers"
)

const (
	testTaprootAddress = "tb1peymd09grxec8qg7tn5vqsmf7j7fhuvw9w8lua3msmzzqhr3qtfjqlj50zg"
	testTxID           = "d78a52d61c43ec43d56e270e8f87ebe952f3bb5fe0a042494ed6ebf753285746"
)

// run executes root command with args and returns its output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// useTestEnv points config to the temporary sqlite database on testnet.
func useTestEnv(t *testing.T) {
	t.Helper()

	t.Setenv("ANCHOR_NETWORK", "testnet3")
	t.Setenv("ANCHOR_DB_DRIVER", "sqlite")
	t.Setenv("ANCHOR_DB_DSN", filepath.Join(t.TempDir(), "anchor.db"))
	t.Setenv("ANCHOR_LOG_LEVEL", "error")
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	require.Contains(t, out, "anchor dev")
	require.Contains(t, out, "commit: none")
}

func TestRootCmdHelp(t *testing.T) {
	out, err := run(t, "", "--help")
	require.NoError(t, err)
	for _, name := range []string{"encode", "decode", "carrier", "build", "resolve", "thread", "serve", "ingest", "db"} {
		require.Contains(t, out, name)
	}
}

func TestEncodeDecodeCmd(t *testing.T) {
	out, err := run(t, "", "encode", "--body", "gm", "--anchor", testTxID+":1")
	require.NoError(t, err)

	payload := strings.TrimSpace(out)
	data, err := hex.DecodeString(payload)
	require.NoError(t, err)
	require.True(t, anchor.IsAnchorPayload(data))

	out, err = run(t, "", "decode", payload)
	require.NoError(t, err)
	require.Contains(t, out, "kind:    text")
	require.Contains(t, out, "parent:")
	require.Contains(t, out, ":1")
	require.Contains(t, out, "body:    gm")

	script, err := carriers.OpReturnScript(data)
	require.NoError(t, err)
	out, err = run(t, "", "decode", "--script", hex.EncodeToString(script))
	require.NoError(t, err)
	require.Contains(t, out, "body:    gm")

	_, err = run(t, "", "decode", "a11c")
	require.Error(t, err)

	_, err = run(t, "", "encode", "--kind", "unknown")
	require.Error(t, err)

	_, err = run(t, "", "encode", "--anchor", testTxID)
	require.Error(t, err)
}

func TestCarrierCmd(t *testing.T) {
	useTestEnv(t)

	out, err := run(t, "", "carrier", "60")
	require.NoError(t, err)
	require.Contains(t, out, "inscription")
	require.Contains(t, out, "recommended: op_return")

	out, err = run(t, "", "carrier", "100000")
	require.NoError(t, err)
	require.Contains(t, out, "recommended: inscription")

	_, err = run(t, "", "carrier", "-1")
	require.Error(t, err)
}

func TestBuildCmd(t *testing.T) {
	useTestEnv(t)

	out, err := run(t, "", "build",
		"--body", "gm",
		"--utxo", testTxID+":2:100000:"+testTaprootAddress,
		"--change", testTaprootAddress,
	)
	require.NoError(t, err)
	require.Contains(t, out, "carrier:  op_return")
	require.Contains(t, out, "fee:      146 sat")
	require.Contains(t, out, "change:   99854 sat")
	require.Contains(t, out, "psbt:     cHNidP")

	_, err = run(t, "", "build",
		"--body", "gm",
		"--utxo", testTxID+":2:500:"+testTaprootAddress,
		"--change", testTaprootAddress,
	)
	require.Error(t, err)

	_, err = run(t, "", "build", "--utxo", "bad", "--change", testTaprootAddress)
	require.Error(t, err)
}

// rawTx returns hex of transaction carrying message in OP_RETURN output.
func rawTx(t *testing.T, seed byte, message anchor.Message) (string, chainhash.Hash) {
	t.Helper()

	payload, err := message.Encode()
	require.NoError(t, err)
	script, err := carriers.OpReturnScript(payload)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{seed}, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(0, script))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	return hex.EncodeToString(buf.Bytes()), tx.TxHash()
}

func TestIndexAndQueryCmds(t *testing.T) {
	useTestEnv(t)

	rootHex, rootHash := rawTx(t, 1, anchor.Message{Kind: anchor.KindText, Body: []byte("root")})
	replyHex, _ := rawTx(t, 2, anchor.Message{
		Kind:    anchor.KindText,
		Anchors: []anchor.Anchor{anchor.NewAnchorFromHash(&rootHash, 0)},
		Body:    []byte("reply"),
	})

	out, err := run(t, "", "db", "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "Migrated 1 tables")

	file := filepath.Join(t.TempDir(), "txs.txt")
	require.NoError(t, os.WriteFile(file, []byte("# root\n"+rootHex+" 840000\n\n"+replyHex+"\n"), 0o600))

	out, err = run(t, "", "ingest", "--file", file)
	require.NoError(t, err)
	require.Contains(t, out, "Indexed 2 messages from 2 transactions, 2 stored")

	out, err = run(t, "", "ingest", "--file", file)
	require.NoError(t, err)
	require.Contains(t, out, "Indexed 2 messages from 2 transactions, 2 stored")

	_, err = run(t, "not-hex\n", "ingest")
	require.Error(t, err)

	out, err = run(t, "", "resolve", anchor.PrefixFromHash(&rootHash).String(), "0")
	require.NoError(t, err)
	require.Contains(t, out, `"resolved_txid": "`+rootHash.String()+`"`)

	out, err = run(t, "", "resolve", anchor.PrefixFromHash(&rootHash).String(), "1")
	require.NoError(t, err)
	require.Contains(t, out, `"is_orphan": true`)

	out, err = run(t, "", "thread", rootHash.String(), "0")
	require.NoError(t, err)
	require.Contains(t, out, `"root"`)
	require.Contains(t, out, `"reply"`)
	require.Contains(t, out, "total messages: 2")

	out, err = run(t, "", "thread", rootHash.String(), "0", "--max-depth", "1", "--max-nodes", "1")
	require.NoError(t, err)
	require.Contains(t, out, "truncated")

	_, err = run(t, "", "thread", rootHash.String(), "5")
	require.Error(t, err)
}

func TestReadRawTxs(t *testing.T) {
	rootHex, rootHash := rawTx(t, 1, anchor.Message{Kind: anchor.KindText})

	tests := []struct {
		name    string
		input   string
		heights []*int64
		wantErr bool
	}{
		{name: "empty", input: "\n\n# comment\n"},
		{name: "with height", input: rootHex + " 10\n", heights: []*int64{ptr(10)}},
		{name: "without height", input: rootHex, heights: []*int64{nil}},
		{name: "negative height", input: rootHex + " -1", wantErr: true},
		{name: "extra fields", input: rootHex + " 1 2", wantErr: true},
		{name: "truncated tx", input: rootHex[:20], wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var heights []*int64
			err := readRawTxs(strings.NewReader(test.input), func(_ int, tx *wire.MsgTx, height *int64) error {
				require.Equal(t, rootHash, tx.TxHash())
				heights = append(heights, height)
				return nil
			})
			if test.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.heights, heights)
		})
	}
}

func ptr(v int64) *int64 {
	return &v
}
