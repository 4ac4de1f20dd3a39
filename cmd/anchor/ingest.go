// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/spf13/cobra"

	"github.com/BoostyLabs/anchor/internal/db"
)

// maxRawTxLine defines maximum accepted line length, hex of the largest standard transaction.
const maxRawTxLine = 2 * 4_000_000

func newIngestCmd(opts *globalOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index messages of raw transactions",
		Long: "Reads raw transactions in hex, one per line, optionally followed by block height,\n" +
			"and stores every message they carry. Reads stdin when --file is not set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if path != "" {
				file, err := os.Open(path)
				if err != nil {
					return err
				}
				defer func() { _ = file.Close() }()
				in = file
			}

			store, conn, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			var txs, messages int
			err = readRawTxs(in, func(line int, tx *wire.MsgTx, height *int64) error {
				indexed, err := store.IndexTransaction(cmd.Context(), tx, height)
				if err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}

				txs++
				messages += len(indexed)
				logger.Debug("transaction ingested", "txid", tx.TxHash().String(), "messages", len(indexed))
				return nil
			})
			if err != nil {
				return err
			}

			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d messages from %d transactions, %d stored\n", messages, txs, total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "file with raw transactions")
	return cmd
}

// readRawTxs parses "<hex> [height]" lines, empty lines and lines starting with # are skipped.
func readRawTxs(r io.Reader, fn func(line int, tx *wire.MsgTx, height *int64) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRawTxLine)

	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) > 2 {
			return fmt.Errorf("line %d: expected <hex> [height]", line)
		}

		raw, err := hex.DecodeString(fields[0])
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		tx := wire.NewMsgTx(wire.TxVersion)
		if err = tx.Deserialize(bytes.NewReader(raw)); err != nil {
			return fmt.Errorf("line %d: deserialize transaction: %w", line, err)
		}

		var height *int64
		if len(fields) == 2 {
			h, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil || h < 0 {
				return fmt.Errorf("line %d: invalid block height %q", line, fields[1])
			}
			height = &h
		}

		if err = fn(line, tx, height); err != nil {
			return err
		}
	}

	return scanner.Err()
}
