package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"watchlog/internal/logging"
	"watchlog/internal/period"
	"watchlog/internal/series"
	wsync "watchlog/internal/sync"
	"watchlog/pkg/models"
)

func parseTitleID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func checkRating(n int) error {
	if n < 0 || n > 5 {
		return fmt.Errorf("rating must be between 0 and 5, got %d", n)
	}
	return nil
}

func (a *app) addCmd() *cobra.Command {
	var (
		label      string
		id         int64
		rating     int
		watched    bool
		img        string
		tags       []string
		studios    []string
		seriesName string
		autoSeries bool
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a title to a broadcast period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkRating(rating); err != nil {
				return err
			}
			if label == "" {
				label = period.ForTime(time.Now())
			}
			if _, ok := period.Parse(label); !ok && label != period.Unclassified {
				logging.Warn().Str("period", label).Msg("period label is not in YEAR年SEASON form, it will sort last")
			}

			t := models.Title{
				ID:         id,
				Name:       strings.TrimSpace(args[0]),
				Poster:     img,
				Rating:     rating,
				Watched:    watched,
				Tags:       tags,
				Studios:    studios,
				SeriesName: seriesName,
			}
			if t.SeriesName == "" && autoSeries {
				if name, ok := series.ExtractName(t.Name); ok {
					t.SeriesName = name
				}
			}

			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				added, err := s.AddTitle(cmd.Context(), label, t)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ added #%d %s to %s\n", added.ID, added.Name, label)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&label, "period", "p", "", "period label such as 2024年冬 (default: current quarter)")
	f.Int64Var(&id, "id", 0, "explicit id (default: generated)")
	f.IntVarP(&rating, "rating", "r", 0, "rating 1-5, 0 for unrated")
	f.BoolVar(&watched, "watched", false, "mark as watched")
	f.StringVar(&img, "img", "", "poster URL or a short placeholder")
	f.StringSliceVarP(&tags, "tags", "t", nil, "comma-separated tags")
	f.StringSliceVar(&studios, "studios", nil, "comma-separated studios")
	f.StringVar(&seriesName, "series", "", "series name")
	f.BoolVar(&autoSeries, "auto-series", false, "derive the series name from a season suffix in NAME")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List titles grouped by period, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				out := cmd.OutOrStdout()
				periods := s.Periods()
				if len(periods) == 0 {
					fmt.Fprintf(out, "no titles yet (%s collection)\n", s.Source())
					return nil
				}
				for _, p := range periods {
					if only != "" && p.Label != only {
						continue
					}
					fmt.Fprintf(out, "%s (%d)\n", p.Label, len(p.Titles))
					for _, t := range p.Titles {
						printTitle(out, t)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&only, "period", "p", "", "only show this period")
	return cmd
}

func printTitle(w io.Writer, t models.Title) {
	mark := " "
	if t.Watched {
		mark = "x"
	}
	stars := "-"
	if t.Rating > 0 {
		stars = strings.Repeat("★", t.Rating)
	}
	fmt.Fprintf(w, "  [%s] #%-14d %s  %s", mark, t.ID, t.Name, stars)
	if t.RewatchCount > 0 {
		fmt.Fprintf(w, "  ↻%d", t.RewatchCount)
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(w, "  #%s", strings.Join(t.Tags, " #"))
	}
	fmt.Fprintln(w)
}

// updateCmd builds a command that edits one title through fn.
func (a *app) updateCmd(use, short string, args cobra.PositionalArgs, fn func(args []string) (func(*models.Title), error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTitleID(args[0])
			if err != nil {
				return err
			}
			edit, err := fn(args[1:])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				t, err := s.UpdateTitle(cmd.Context(), id, edit)
				if err != nil {
					return err
				}
				printTitle(cmd.OutOrStdout(), t)
				return nil
			})
		},
	}
}

func (a *app) rateCmd() *cobra.Command {
	return a.updateCmd("rate ID RATING", "Rate a title 1-5, 0 clears the rating", cobra.ExactArgs(2),
		func(args []string) (func(*models.Title), error) {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, fmt.Errorf("invalid rating %q", args[0])
			}
			if err := checkRating(n); err != nil {
				return nil, err
			}
			return func(t *models.Title) { t.Rating = n }, nil
		})
}

func (a *app) watchCmd() *cobra.Command {
	var unset bool
	cmd := a.updateCmd("watch ID", "Mark a title as watched", cobra.ExactArgs(1),
		func([]string) (func(*models.Title), error) {
			return func(t *models.Title) { t.Watched = !unset }, nil
		})
	cmd.Flags().BoolVar(&unset, "unset", false, "mark as not watched instead")
	return cmd
}

func (a *app) rewatchCmd() *cobra.Command {
	return a.updateCmd("rewatch ID", "Count one more rewatch of a title", cobra.ExactArgs(1),
		func([]string) (func(*models.Title), error) {
			return func(t *models.Title) { t.RewatchCount++ }, nil
		})
}

func (a *app) tagCmd() *cobra.Command {
	var remove bool
	cmd := a.updateCmd("tag ID TAG...", "Add or remove tags on a title", cobra.MinimumNArgs(2),
		func(args []string) (func(*models.Title), error) {
			return func(t *models.Title) {
				t.Tags = editTags(t.Tags, args, remove)
			}, nil
		})
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the tags instead")
	return cmd
}

// editTags adds (keeping order, skipping duplicates) or removes tags.
func editTags(current, tags []string, remove bool) []string {
	out := make([]string, 0, len(current)+len(tags))
	drop := make(map[string]bool, len(tags))
	if remove {
		for _, t := range tags {
			drop[strings.TrimSpace(t)] = true
		}
	}
	seen := make(map[string]bool, len(current))
	for _, t := range current {
		if drop[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if remove {
		return out
	}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move ID PERIOD",
		Short: "Move a title to another period",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTitleID(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				if err := s.MoveTitle(cmd.Context(), id, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ moved #%d to %s\n", id, args[1])
				return nil
			})
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTitleID(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				if err := s.RemoveTitle(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ removed #%d\n", id)
				return nil
			})
		},
	}
}
