package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/sxyafiq/seqgen"
)

func newGenerateCommand(root *rootOptions) *cobra.Command {
	var (
		count      int
		format     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen", "g"},
		Short:   "Mint one or more IDs",
		Example: `  seqgen generate --node 42
  seqgen generate --count 1000 --format base62
  seqgen generate --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			if _, ok := lookupFormat(format); !ok {
				return fmt.Errorf("unknown format %q", format)
			}

			gen, err := root.generator(cmd)
			if err != nil {
				return err
			}

			start := time.Now()
			ids, err := gen.NextBatch(context.Background(), count)
			if err != nil {
				return err
			}
			duration := time.Since(start)

			out := cmd.OutOrStdout()
			if jsonOutput {
				return outputJSON(cmd, ids, duration, gen.NodeID())
			}
			for _, id := range ids {
				fmt.Fprintln(out, formatID(id, format))
			}
			// Show performance stats for large batches
			if count > 100 {
				rate := float64(count) / duration.Seconds()
				fmt.Fprintf(cmd.ErrOrStderr(), "\nGenerated %d IDs in %v (%.0f IDs/sec)\n", count, duration, rate)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of IDs to mint")
	cmd.Flags().StringVarP(&format, "format", "f", "decimal", "output format: decimal, base62, base58, hex, binary")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON with components")
	return cmd
}

var formats = map[string]func(seqgen.ID) string{
	"decimal": seqgen.ID.String,
	"dec":     seqgen.ID.String,
	"base62":  seqgen.ID.Base62,
	"b62":     seqgen.ID.Base62,
	"base58":  seqgen.ID.Base58,
	"b58":     seqgen.ID.Base58,
	"hex":     seqgen.ID.Hex,
	"x":       seqgen.ID.Hex,
	"binary":  seqgen.ID.Base2,
	"bin":     seqgen.ID.Base2,
}

func lookupFormat(name string) (func(seqgen.ID) string, bool) {
	f, ok := formats[strings.ToLower(name)]
	return f, ok
}

func formatID(id seqgen.ID, format string) string {
	if f, ok := lookupFormat(format); ok {
		return f(id)
	}
	return id.String()
}

type idInfo struct {
	ID        seqgen.ID `json:"id"`
	Base62    string    `json:"base62"`
	Hex       string    `json:"hex"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    int64     `json:"node_id"`
	Sequence  int64     `json:"sequence"`
}

func newIDInfo(id seqgen.ID) idInfo {
	ts, node, seq := id.Components()
	return idInfo{
		ID:        id,
		Base62:    id.Base62(),
		Hex:       id.Hex(),
		Timestamp: time.UnixMilli(ts).UTC(),
		NodeID:    node,
		Sequence:  seq,
	}
}

func outputJSON(cmd *cobra.Command, ids []seqgen.ID, duration time.Duration, nodeID int64) error {
	type output struct {
		Count    int      `json:"count"`
		NodeID   int64    `json:"node_id"`
		Duration string   `json:"duration"`
		IDs      []idInfo `json:"ids"`
	}

	infos := make([]idInfo, len(ids))
	for i, id := range ids {
		infos[i] = newIDInfo(id)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(output{
		Count:    len(ids),
		NodeID:   nodeID,
		Duration: duration.String(),
		IDs:      infos,
	})
}
