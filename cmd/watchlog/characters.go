package main

import (
	"fmt"

	"github.com/spf13/cobra"

	wsync "watchlog/internal/sync"
	"watchlog/pkg/models"
)

// Favorite characters always live in the device cache, signed in or not.
func (a *app) charactersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "characters",
		Aliases: []string{"chars"},
		Short:   "Manage favorite characters",
	}

	var c models.Character
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a favorite character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Name = args[0]
			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				added, err := s.AddCharacter(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ added #%d %s\n", added.ID, added.Name)
				return nil
			})
		},
	}
	add.Flags().StringVar(&c.Source, "anime", "", "title the character appears in")
	add.Flags().StringVar(&c.Image, "img", "", "image URL")
	add.Flags().StringVar(&c.Note, "note", "", "free-form note")

	list := &cobra.Command{
		Use:   "list",
		Short: "List favorite characters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				out := cmd.OutOrStdout()
				chars := s.Characters()
				if len(chars) == 0 {
					fmt.Fprintln(out, "no favorite characters yet")
					return nil
				}
				for _, ch := range chars {
					fmt.Fprintf(out, "  #%-14d %s", ch.ID, ch.Name)
					if ch.Source != "" {
						fmt.Fprintf(out, "  (%s)", ch.Source)
					}
					if ch.Note != "" {
						fmt.Fprintf(out, "  %s", ch.Note)
					}
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a favorite character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTitleID(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *wsync.Session) error {
				if err := s.RemoveCharacter(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ removed #%d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(add, list, rm)
	return cmd
}
