package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/civicforum/constitution-platform/internal/service"
)

// TrendingOptions holds flags for the trending command.
type TrendingOptions struct {
	*RootOptions
	At    string
	Limit int
}

// NewTrendingCommand creates the trending command.
func NewTrendingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrendingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Print the trending ranking",
		Long: `Print posts ranked by the number of responses they received in the
48 hours before --at (default: now).

Examples:
  civicctl trending
  civicctl trending --at 2025-03-10T12:00:00Z --limit 5 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrending(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "evaluate the window ending at this RFC 3339 time")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum rows to print (0 for all)")

	return cmd
}

func runTrending(cmd *cobra.Command, opts *TrendingOptions) error {
	now := time.Now()
	if opts.At != "" {
		t, err := time.Parse(time.RFC3339, opts.At)
		if err != nil {
			return fmt.Errorf("invalid --at %q: %w", opts.At, err)
		}
		now = t
	}

	db, err := opts.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	engagement := service.NewEngagementService(db, db, opts.logger(cmd.ErrOrStderr()))
	trending, err := engagement.ComputeTrending(cmd.Context(), now)
	if err != nil {
		return err
	}
	if opts.Limit > 0 && len(trending) > opts.Limit {
		trending = trending[:opts.Limit]
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(trending)
	}

	if len(trending) == 0 {
		fmt.Fprintln(out, "no posts with responses in the last 48 hours")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPOST\tARTICLE\tRECENT\tAGREE\tDISAGREE")
	for i, p := range trending {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\n",
			i+1, p.PostID, p.ArticleNumber, p.RecentResponses, p.AgreeCount, p.DisagreeCount)
	}
	return tw.Flush()
}
