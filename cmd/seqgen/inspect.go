package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/sxyafiq/seqgen"
)

func addFromFlag(cmd *cobra.Command, from *string) *cobra.Command {
	cmd.Flags().StringVar(from, "from", "", "input encoding: decimal, base62, base58, hex, binary (default: detect decimal, base62 or hex)")
	return cmd
}

func newParseCommand() *cobra.Command {
	var from string
	return addFromFlag(&cobra.Command{
		Use:     "parse <id>",
		Aliases: []string{"p"},
		Short:   "Inspect an ID given in decimal, base62, base58 or hex",
		Example: `  seqgen parse 1234567890123456789
  seqgen parse 1Hk22BSjd0F
  seqgen parse --from base58 4Cdtix9Xy2f`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseArg(args[0], from)
			if err != nil {
				return err
			}

			ts, node, seq := id.Components()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID: %s\n\n", id)
			fmt.Fprintf(out, "Components:\n")
			fmt.Fprintf(out, "  Timestamp:  %s (%d ms)\n", time.UnixMilli(ts).UTC().Format(time.RFC3339Nano), ts)
			fmt.Fprintf(out, "  Node ID:    %d\n", node)
			fmt.Fprintf(out, "  Sequence:   %d\n\n", seq)
			fmt.Fprintf(out, "Encodings:\n")
			fmt.Fprintf(out, "  Decimal:    %s\n", id.String())
			fmt.Fprintf(out, "  Unsigned:   %d\n", id.Uint64())
			fmt.Fprintf(out, "  Base62:     %s\n", id.Base62())
			fmt.Fprintf(out, "  Base58:     %s\n", id.Base58())
			fmt.Fprintf(out, "  Hex:        %s\n\n", id.Hex())
			fmt.Fprintf(out, "Age:          %v\n", id.Age().Round(time.Millisecond))
			fmt.Fprintf(out, "Valid:        %v\n", id.IsValid())
			return nil
		},
	}, &from)
}

func newEncodeCommand() *cobra.Command {
	var from string
	return addFromFlag(&cobra.Command{
		Use:     "encode <id> <format>",
		Aliases: []string{"enc", "e"},
		Short:   "Convert an ID to decimal, base62, base58, hex or binary",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseArg(args[0], from)
			if err != nil {
				return err
			}
			f, ok := lookupFormat(args[1])
			if !ok {
				return fmt.Errorf("unknown format %q", args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), f(id))
			return nil
		},
	}, &from)
}

func newValidateCommand() *cobra.Command {
	var from string
	return addFromFlag(&cobra.Command{
		Use:     "validate <id>",
		Aliases: []string{"val", "v"},
		Short:   "Check that an ID's timestamp is plausible",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseArg(args[0], from)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ts, node, seq := id.Components()
			if !id.IsValid() {
				fmt.Fprintf(out, "INVALID: ID structure is invalid\n")
				fmt.Fprintf(out, "  Timestamp:  %d ms\n", ts)
				fmt.Fprintf(out, "  Node ID:    %d\n", node)
				fmt.Fprintf(out, "  Sequence:   %d\n", seq)
				if ts <= seqgen.Epoch {
					fmt.Fprintf(out, "  Error: timestamp is at or before the epoch\n")
				} else {
					fmt.Fprintf(out, "  Error: timestamp is more than a day in the future\n")
				}
				return fmt.Errorf("invalid ID %s", id)
			}

			fmt.Fprintf(out, "VALID: ID structure is valid\n")
			fmt.Fprintf(out, "  Timestamp:  %s\n", time.UnixMilli(ts).UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "  Node ID:    %d\n", node)
			fmt.Fprintf(out, "  Sequence:   %d\n", seq)
			return nil
		},
	}, &from)
}

func newNodeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "node",
		Short: "Show the node ID this host would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := root.generator(cmd)
			if err != nil {
				return err
			}
			identity := gen.Identity()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Node ID:  %d\n", identity.NodeID)
			fmt.Fprintf(out, "Origin:   %s\n", identity.Origin)
			if identity.Hint != "" {
				fmt.Fprintf(out, "Hint:     %s\n", identity.Hint)
			}
			if identity.Err != nil {
				fmt.Fprintf(out, "Reason:   %v\n", identity.Err)
			}
			return nil
		},
	}
}

func newLayoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show the bit layout and its capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l := seqgen.DefaultLayout
			c := l.Capacity()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bits:             %d timestamp | %d node | %d sequence\n", l.TimestampBits, l.NodeIDBits, l.SequenceBits)
			fmt.Fprintf(out, "Epoch:            %s\n", time.UnixMilli(l.Epoch).UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "Nodes:            %d\n", c.MaxNodes)
			fmt.Fprintf(out, "Per node:         %d IDs/ms, %d IDs/sec\n", c.IDsPerMillisecond, c.ThroughputPerNode)
			fmt.Fprintf(out, "Negative from:    %s\n", c.SignedOverflow.Format(time.RFC3339Nano))
			fmt.Fprintf(out, "Exhausted at:     %s\n", c.End.Format(time.RFC3339Nano))
			return nil
		},
	}
}
