package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/sxyafiq/seqgen"
)

func newBenchCommand(root *rootOptions) *cobra.Command {
	var (
		duration  time.Duration
		batchSize int
	)

	cmd := &cobra.Command{
		Use:     "bench",
		Aliases: []string{"benchmark", "b"},
		Short:   "Measure minting and encoding throughput",
		Example: `  seqgen bench --duration 5s
  seqgen bench --node 42 --batch 1000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration <= 0 || batchSize < 1 {
				return fmt.Errorf("--duration and --batch must be positive")
			}
			gen, err := root.generator(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running benchmarks (duration: %v, node: %d)\n\n", duration, gen.NodeID())

			fmt.Fprintf(out, "1. Single ID minting:\n")
			count := 0
			start := time.Now()
			deadline := start.Add(duration)
			for time.Now().Before(deadline) {
				if _, err := gen.NextID(); err != nil {
					return err
				}
				count++
			}
			report(cmd, count, time.Since(start))

			fmt.Fprintf(out, "2. Batch minting (batch size: %d):\n", batchSize)
			count = 0
			start = time.Now()
			deadline = start.Add(duration)
			for time.Now().Before(deadline) {
				ids, err := gen.NextBatch(context.Background(), batchSize)
				if err != nil {
					return err
				}
				count += len(ids)
			}
			report(cmd, count, time.Since(start))

			m := gen.Metrics()
			fmt.Fprintf(out, "   Sequence overflows: %d (waited %v)\n\n", m.SequenceOverflows,
				time.Duration(m.WaitTimeMicros)*time.Microsecond)

			fmt.Fprintf(out, "3. Encoding (1000 operations):\n")
			id, err := gen.Next()
			if err != nil {
				return err
			}
			for _, name := range []string{"decimal", "base62", "base58", "hex"} {
				f, _ := lookupFormat(name)
				start := time.Now()
				for i := 0; i < 1000; i++ {
					_ = f(id)
				}
				fmt.Fprintf(out, "   %-8s %6.0f ns/op\n", name+":", float64(time.Since(start).Nanoseconds())/1000)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 3*time.Second, "duration of each benchmark")
	cmd.Flags().IntVar(&batchSize, "batch", 100, "batch size for the batch benchmark")
	return cmd
}

func report(cmd *cobra.Command, count int, elapsed time.Duration) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "   Minted:   %d IDs\n", count)
	fmt.Fprintf(out, "   Duration: %v\n", elapsed.Round(time.Millisecond))
	if count > 0 {
		fmt.Fprintf(out, "   Rate:     %.0f IDs/sec (%.0f ns/op)\n",
			float64(count)/elapsed.Seconds(), float64(elapsed.Nanoseconds())/float64(count))
	}
	// Anything above one node's theoretical ceiling means the clock misbehaved.
	if ceiling := seqgen.DefaultLayout.Capacity().ThroughputPerNode; float64(count)/elapsed.Seconds() > float64(ceiling)*1.01 {
		fmt.Fprintf(out, "   WARNING: exceeded %d IDs/sec ceiling\n", ceiling)
	}
	fmt.Fprintln(out)
}
