// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BoostyLabs/anchor/bitcoin"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/carriers"
	"github.com/BoostyLabs/anchor/bitcoin/txbuilder"
	"github.com/BoostyLabs/anchor/bitcoin/utils"
)

func newBuildCmd(opts *globalOptions) *cobra.Command {
	var (
		kind         string
		anchors      []string
		body         string
		bodyHex      string
		utxos        []string
		change       string
		feeRate      int64
		carrier      string
		revealPubKey string
		inputsPubKey string
		selectInputs bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build unsigned message transaction",
		Long: "Builds unsigned PSBT carrying the message. Output 0 is the carrier, output 1 is the change.\n" +
			"UTXOs are passed as <txid>:<vout>:<amount>:<address>.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			params, err := cfg.Params()
			if err != nil {
				return err
			}
			strategy, err := cfg.Strategy()
			if err != nil {
				return err
			}

			message, err := newMessage(kind, nil, body, bodyHex)
			if err != nil {
				return err
			}

			inputs := make([]bitcoin.UTXO, 0, len(utxos))
			for _, value := range utxos {
				utxo, err := parseUTXO(value)
				if err != nil {
					return err
				}
				if utxo.Script, err = utils.PayToAddressScript(utxo.Address, params); err != nil {
					return fmt.Errorf("utxo %q: %w", value, err)
				}
				inputs = append(inputs, utxo)
			}

			if feeRate == 0 {
				feeRate = cfg.Fee.SatPerVByte
			}

			tx := txbuilder.NewMessageTx(message.Kind).
				AddInputs(inputs...).
				WithBody(message.Body).
				WithChangeAddress(change).
				WithFeeRate(feeRate).
				WithRevealPubKey(revealPubKey).
				WithInputsPubKey(inputsPubKey)
			for _, value := range anchors {
				txid, vout, err := parseOutpoint(value, 8)
				if err != nil {
					return err
				}
				tx.AddAnchor(txid, byte(vout))
			}
			if carrier != "" {
				parsed, err := carriers.ParseCarrier(carrier)
				if err != nil {
					return err
				}
				tx.WithCarrier(parsed)
			}
			if selectInputs {
				tx.WithInputsSelection()
			}

			builder := txbuilder.NewTxBuilder(params, strategy)
			result, err := tx.Build(builder)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "carrier:  %s\n", result.Carrier)
			fmt.Fprintf(out, "payload:  %s\n", hex.EncodeToString(result.Payload))
			fmt.Fprintf(out, "vsize:    %s\n", result.EstimatedVSize)
			fmt.Fprintf(out, "fee:      %s sat\n", result.Fee)
			fmt.Fprintf(out, "change:   %s sat\n", result.Change)
			fmt.Fprintf(out, "inputs:   %d\n", len(result.UsedInputs))
			fmt.Fprintf(out, "psbt:     %s\n", base64.StdEncoding.EncodeToString(result.PSBT))
			return nil
		},
	}

	addMessageFlags(cmd, &kind, &anchors, &body, &bodyHex)
	cmd.Flags().StringArrayVarP(&utxos, "utxo", "u", nil, "input as <txid>:<vout>:<amount>:<address>, repeatable")
	cmd.Flags().StringVar(&change, "change", "", "change address")
	cmd.Flags().Int64Var(&feeRate, "fee-rate", 0, "fee rate in sat/vB, config default if zero")
	cmd.Flags().StringVar(&carrier, "carrier", "", "carrier name, recommended by payload size if empty")
	cmd.Flags().StringVar(&revealPubKey, "reveal-pubkey", "", "hex public key committed to by witness carriers")
	cmd.Flags().StringVar(&inputsPubKey, "inputs-pubkey", "", "hex public key of inputs owner")
	cmd.Flags().BoolVar(&selectInputs, "select", false, "spend minimal inputs subset")
	_ = cmd.MarkFlagRequired("change")
	return cmd
}

// parseUTXO parses "<txid>:<vout>:<amount>:<address>".
func parseUTXO(value string) (bitcoin.UTXO, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 4 {
		return bitcoin.UTXO{}, fmt.Errorf("utxo %q: expected <txid>:<vout>:<amount>:<address>", value)
	}

	txid, vout, err := parseOutpoint(parts[0]+":"+parts[1], 32)
	if err != nil {
		return bitcoin.UTXO{}, err
	}

	amount, ok := new(big.Int).SetString(parts[2], 10)
	if !ok || amount.Sign() <= 0 {
		return bitcoin.UTXO{}, fmt.Errorf("utxo %q: invalid amount", value)
	}

	return bitcoin.UTXO{
		TxHash:  txid,
		Index:   uint32(vout),
		Amount:  amount,
		Address: parts[3],
	}, nil
}
