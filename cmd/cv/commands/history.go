package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"chunkvault/pkg/exporter"
	"chunkvault/pkg/meta"

	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	historyVerbose bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded self-encrypt runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if CV == nil {
			return fmt.Errorf("app not initialized")
		}
		if CV.Repository == nil {
			return fmt.Errorf("no catalog configured (set catalog.driver)")
		}

		runs, err := CV.Repository.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs yet.")
			return nil
		}
		if err := printRuns(cmd.OutOrStdout(), runs); err != nil {
			return err
		}
		if historyVerbose {
			return printRunChunks(cmd.OutOrStdout(), runs)
		}
		return nil
	},
}

func printRuns(w io.Writer, runs []meta.RunRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "DATE\tKIND\tSIZE\tCHUNKS\tMANIFEST\n")
	for _, r := range runs {
		manifest := r.ManifestAddress
		if len(manifest) > 7 {
			manifest = manifest[:7] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.CreatedAt.Format(time.RFC3339), r.Kind, exporter.TidySize(r.InputSize), r.ChunkCount, manifest)
	}
	return tw.Flush()
}

// printRunChunks 逐条列出每次运行产生的 Chunk 地址
func printRunChunks(w io.Writer, runs []meta.RunRecord) error {
	for _, r := range runs {
		addrs, err := r.ChunkAddresses()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nrun %d  input %s\n", r.ID, r.InputDigest)
		if len(addrs) == 0 {
			fmt.Fprintln(w, "  (no chunks)")
			continue
		}
		for i, a := range addrs {
			fmt.Fprintf(w, "  %3d  %s\n", i, a)
		}
	}
	return nil
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().BoolVarP(&historyVerbose, "verbose", "v", false, "List the chunk addresses of each run")
	rootCmd.AddCommand(historyCmd)
}
