// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/spf13/cobra"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/resolver"
	"github.com/BoostyLabs/anchor/internal/db"
)

func newResolveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <prefix> <vout>",
		Short: "Resolve anchor into indexed message",
		Long:  "Resolves anchor given as 16 hex chars txid prefix in internal byte order and output index.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := anchor.ParsePrefix(args[0])
			if err != nil {
				return err
			}
			vout, err := strconv.ParseUint(args[1], 10, 8)
			if err != nil {
				return fmt.Errorf("vout: %w", err)
			}

			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, conn, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			r := resolver.New(store, resolver.WithLogger(logger), resolver.WithDefaultBudget(cfg.Budget()))
			res, err := r.ResolveAnchor(cmd.Context(), prefix, byte(vout))
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(resolver.Summarize(res))
		},
	}
}

func newThreadCmd(opts *globalOptions) *cobra.Command {
	var budget resolver.Budget

	cmd := &cobra.Command{
		Use:   "thread <txid> <vout>",
		Short: "Print reply thread of the message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			txid, err := chainhash.NewHashFromStr(args[0])
			if err != nil {
				return err
			}
			vout, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("vout: %w", err)
			}

			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			store, conn, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			r := resolver.New(store, resolver.WithLogger(logger), resolver.WithDefaultBudget(cfg.Budget()))
			thread, err := r.BuildThread(cmd.Context(), *txid, uint32(vout), budget)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printThreadNode(out, thread.Root)
			fmt.Fprintf(out, "total messages: %d\n", thread.TotalMessages())
			if thread.Truncated {
				fmt.Fprintln(out, "truncated: budget exceeded")
			}
			if thread.Cycles != 0 {
				fmt.Fprintf(out, "cycles: %d\n", thread.Cycles)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&budget.MaxDepth, "max-depth", 0, "maximum reply depth, config default if zero")
	cmd.Flags().IntVar(&budget.MaxNodes, "max-nodes", 0, "maximum messages count, config default if zero")
	return cmd
}

func printThreadNode(out io.Writer, node *resolver.ThreadNode) {
	message := node.Message
	body := fmt.Sprintf("%x", message.Body)
	if message.Kind == anchor.KindText {
		body = strconv.Quote(string(message.Body))
	}

	fmt.Fprintf(out, "%s%s:%d [%s] %s (replies: %d)\n", strings.Repeat("  ", node.Depth),
		message.TxID, message.Vout, message.Kind, body, node.ReplyCount)
	for _, reply := range node.Replies {
		printThreadNode(out, reply)
	}
}
