// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCarrierCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "carrier <payload-size>",
		Short: "Show carriers able to hold payload of provided size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.Atoi(args[0])
			if err != nil || size < 0 {
				return fmt.Errorf("payload size must be a non-negative integer: %s", args[0])
			}

			cfg, _, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			strategy, err := cfg.Strategy()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CARRIER\tMAX PAYLOAD\tFITS\tEST. VSIZE\tRELAYED\tPRUNABLE\tUTXO IMPACT")
			for _, info := range strategy.Table() {
				vSize, err := strategy.EstimateTxSize(size, info.Carrier)
				if err != nil {
					return err
				}

				fmt.Fprintf(w, "%s\t%d\t%t\t%d\t%t\t%t\t%t\n", info.Carrier, info.MaxPayload,
					strategy.CanHandle(info.Carrier, size), vSize, info.Relayed, info.Prunable, info.UTXOImpact)
			}
			if err = w.Flush(); err != nil {
				return err
			}

			recommended, err := strategy.Recommend(size)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "recommended: %s\n", recommended)
			return nil
		},
	}
}
