// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
)

func newEncodeCmd() *cobra.Command {
	var (
		kind    string
		anchors []string
		body    string
		bodyHex string
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode message into hex payload",
		Long:  "Encodes message kind, anchors and body into protocol payload. The first anchor is the canonical parent.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := newMessage(kind, anchors, body, bodyHex)
			if err != nil {
				return err
			}

			payload, err := message.Encode()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(payload))
			return nil
		},
	}

	addMessageFlags(cmd, &kind, &anchors, &body, &bodyHex)
	return cmd
}

func newDecodeCmd() *cobra.Command {
	var script bool

	cmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode hex payload or OP_RETURN script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("decode hex: %w", err)
			}

			var message *anchor.Message
			if script {
				var ok bool
				if message, ok = anchor.MessageFromScript(data); !ok {
					return fmt.Errorf("script carries no message")
				}
			} else if message, err = anchor.Decode(data); err != nil {
				return err
			}

			printMessage(cmd, message)
			return nil
		},
	}

	cmd.Flags().BoolVar(&script, "script", false, "treat input as OP_RETURN output script")
	return cmd
}

func addMessageFlags(cmd *cobra.Command, kind *string, anchors *[]string, body, bodyHex *string) {
	cmd.Flags().StringVarP(kind, "kind", "k", "text", "message kind name or number")
	cmd.Flags().StringArrayVarP(anchors, "anchor", "a", nil, "anchor as <txid>:<vout>, repeatable")
	cmd.Flags().StringVarP(body, "body", "b", "", "message body text")
	cmd.Flags().StringVar(bodyHex, "body-hex", "", "message body as hex, overrides --body")
}

// newMessage builds message from command flags.
func newMessage(kind string, anchors []string, body, bodyHex string) (*anchor.Message, error) {
	parsedKind, err := anchor.ParseKind(kind)
	if err != nil {
		return nil, err
	}

	message := &anchor.Message{Kind: parsedKind, Body: []byte(body)}
	if bodyHex != "" {
		if message.Body, err = hex.DecodeString(bodyHex); err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
	}

	for _, value := range anchors {
		txid, vout, err := parseOutpoint(value, 8)
		if err != nil {
			return nil, err
		}

		ref, err := anchor.NewAnchor(txid, byte(vout))
		if err != nil {
			return nil, err
		}
		message.Anchors = append(message.Anchors, ref)
	}

	return message, nil
}

// parseOutpoint parses "<txid>:<vout>" with vout fitting into bits.
func parseOutpoint(value string, bits int) (string, uint64, error) {
	txid, voutStr, ok := strings.Cut(value, ":")
	if !ok {
		return "", 0, fmt.Errorf("outpoint %q: expected <txid>:<vout>", value)
	}

	vout, err := strconv.ParseUint(voutStr, 10, bits)
	if err != nil {
		return "", 0, fmt.Errorf("outpoint %q: %w", value, err)
	}

	return txid, vout, nil
}

func printMessage(cmd *cobra.Command, message *anchor.Message) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "kind:    %s\n", message.Kind)
	for i, ref := range message.Anchors {
		role := "anchor"
		if i == 0 {
			role = "parent"
		}
		fmt.Fprintf(out, "%s:  %s\n", role, ref)
	}
	if message.Kind == anchor.KindText {
		fmt.Fprintf(out, "body:    %s\n", message.Body)
		return
	}
	fmt.Fprintf(out, "body:    %s\n", hex.EncodeToString(message.Body))
}
