package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"watchlog/internal/client"
	"watchlog/internal/series"
	"watchlog/internal/stats"
	wsync "watchlog/internal/sync"
)

func (a *app) seriesCmd() *cobra.Command {
	var suggest string
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Show titles grouped into series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if suggest != "" {
				return a.suggestions(cmd, suggest)
			}
			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				out := cmd.OutOrStdout()
				res := series.GroupTitles(s.Titles())
				for _, sr := range res.Series {
					fmt.Fprintf(out, "%s (%d)\n", sr.Key, len(sr.Members))
					for _, t := range sr.Members {
						printTitle(out, t)
					}
				}
				if len(res.Standalone) > 0 {
					fmt.Fprintf(out, "standalone (%d)\n", len(res.Standalone))
					for _, t := range res.Standalone {
						printTitle(out, t)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&suggest, "suggest", "", "list catalog entries of this series not yet in the log (requires login)")
	return cmd
}

func (a *app) suggestions(cmd *cobra.Command, key string) error {
	token, err := client.LoadToken(a.cfg.Client.TokenPath)
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("catalog suggestions need a signed-in account, run `watchlog auth login`")
	}
	entries, err := a.client(token).Suggestions(cmd.Context(), key)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "no unregistered catalog entries for %q\n", key)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "  %s  %s", e.Title, e.Season)
		if len(e.Studios) > 0 {
			fmt.Fprintf(out, "  (%s)", strings.Join(e.Studios, ", "))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func (a *app) statsCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				sum := stats.Summarize(s.Periods(), top)
				out := cmd.OutOrStdout()

				fmt.Fprintf(out, "titles:     %d (%d watched)\n", sum.Total, sum.Watched)
				fmt.Fprintf(out, "avg rating: %.2f\n", sum.RatedAverage)
				fmt.Fprintf(out, "rewatches:  %d\n", sum.TotalRewatches)
				if sum.BusiestPeriod != "" {
					fmt.Fprintf(out, "busiest:    %s (%d)\n", sum.BusiestPeriod, sum.BusiestCount)
				}

				fmt.Fprintln(out, "ratings:")
				for r := 5; r >= 1; r-- {
					n := sum.Ratings.Counts[r]
					fmt.Fprintf(out, "  %d %s %d\n", r, bar(n, sum.Ratings.Max, 20), n)
				}
				printCounts(cmd, "top tags:", sum.TopTags)
				printCounts(cmd, "top studios:", sum.TopStudios)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", stats.DefaultTopK, "entries per top list")
	return cmd
}

func printCounts(cmd *cobra.Command, heading string, counts []stats.Count) {
	if len(counts) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, heading)
	for _, c := range counts {
		fmt.Fprintf(out, "  %-20s %d\n", c.Name, c.Count)
	}
}

func bar(n, peak, width int) string {
	if peak <= 0 {
		return ""
	}
	return strings.Repeat("█", n*width/peak)
}
