package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/services"
)

const timeLayout = "2006-01-02 15:04:05.000"

var errNotIncreasing = errors.New("generated IDs are not strictly increasing")

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate snowflake IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			plain, _ := cmd.Flags().GetBool("plain")
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}

			gen, _, err := newGenerator(cmd)
			if err != nil {
				return err
			}

			ids := make([]idgen.ID, 0, count)
			for range count {
				id, err := gen.NextIDContext(cmd.Context())
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			out := cmd.OutOrStdout()
			if plain {
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tTimestamp\tNode ID\tSequence")
			for _, id := range ids {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", id, id.Time().Format(timeLayout), id.NodeID(), id.Sequence())
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if count == 1 {
				fmt.Fprintf(out, "\nGenerated snowflake ID: %s\n", ids[0])
			} else {
				fmt.Fprintf(out, "\nGenerated %d snowflake IDs\n", count)
			}
			return nil
		},
	}
	cmd.Flags().IntP("count", "c", 1, "number of IDs to generate")
	cmd.Flags().Bool("plain", false, "print one ID per line without a table")
	return cmd
}

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <id>",
		Short: "Decode the components of a snowflake ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base62, _ := cmd.Flags().GetBool("base62")

			var (
				id  idgen.ID
				err error
			)
			if base62 {
				id, err = idgen.ParseBase62(args[0])
			} else {
				id, err = idgen.ParseID(args[0])
			}
			if err != nil {
				return fmt.Errorf("invalid snowflake ID %q: %w", args[0], err)
			}

			info := services.Describe(id)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID: %s\n\n", info.ID)

			tw := newTable(out)
			fmt.Fprintln(tw, "Component\tValue\tInfo")
			fmt.Fprintf(tw, "Timestamp\t%d\tgenerated at %s UTC\n", info.Timestamp, info.Time.UTC().Format(timeLayout))
			fmt.Fprintf(tw, "Node ID\t%d\tissuing node\n", info.NodeID)
			fmt.Fprintf(tw, "Sequence\t%d\tsequence within the millisecond\n", info.Sequence)
			fmt.Fprintf(tw, "Base62\t%s\t\n", info.Base62)
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(out, "\nBinary (64 bits): %s\n", info.Binary)
			return nil
		},
	}
	cmd.Flags().Bool("base62", false, "read the argument as a base62 ID")
	return cmd
}

func newBenchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure ID generation throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			counts, _ := cmd.Flags().GetIntSlice("counts")

			gen, _, err := newGenerator(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			type result struct {
				count    int
				duration time.Duration
			}
			results := make([]result, 0, len(counts))

			for _, count := range counts {
				if count < 1 {
					return fmt.Errorf("benchmark counts must be positive, got %d", count)
				}
				fmt.Fprintf(out, "Generating %d IDs... ", count)

				var last idgen.ID
				start := time.Now()
				for range count {
					id, err := gen.NextIDContext(cmd.Context())
					if err != nil {
						return err
					}
					if id <= last {
						return errNotIncreasing
					}
					last = id
				}
				results = append(results, result{count: count, duration: time.Since(start)})
				fmt.Fprintln(out, "done")
			}

			fmt.Fprintln(out)
			tw := newTable(out)
			fmt.Fprintln(tw, "Count\tDuration\tIDs/second")
			for _, r := range results {
				fmt.Fprintf(tw, "%d\t%.2f ms\t%.0f\n", r.count,
					float64(r.duration)/float64(time.Millisecond), perSecond(r.count, r.duration))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntSlice("counts", []int{1000, 10000, 100000}, "batch sizes to time")
	return cmd
}

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the ID layout and the node in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, node, err := newGenerator(cmd)
			if err != nil {
				return err
			}

			layout := services.CurrentLayout()
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "Node ID\t%d\n", node)
			fmt.Fprintf(tw, "Epoch\t%d (%s)\n", layout.Epoch, layout.EpochTime.UTC().Format(time.RFC3339))
			fmt.Fprintf(tw, "Timestamp bits\t%d\n", layout.TimestampBits)
			fmt.Fprintf(tw, "Node ID bits\t%d (max %d)\n", layout.NodeIDBits, layout.MaxNodeID)
			fmt.Fprintf(tw, "Sequence bits\t%d (max %d per ms)\n", layout.SequenceBits, layout.MaxSequence)
			fmt.Fprintf(tw, "Exhausted at\t%s\n", idgen.Compose(idgen.MaxTimestamp, 0, 0).Time().UTC().Format(time.RFC3339))
			return tw.Flush()
		},
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func perSecond(count int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(count) / d.Seconds()
}
