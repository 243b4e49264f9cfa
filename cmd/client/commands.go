package main

import (
	"fmt"
	"strconv"

	"github.com/pscheid92/votepulse/internal/domain"
	"github.com/spf13/cobra"
)

func addCommand() *cobra.Command {
	var submission domain.NewVotingData

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Submit vote counts for a place and date",
		RunE: func(cmd *cobra.Command, args []string) error {
			submission.SubmittedBy = domain.Submitter{Role: cfg.Role}
			return withSession(cmd.Context(), func(s *session) error {
				record, err := s.store.AddVotingData(cmd.Context(), submission)
				if err != nil {
					return err
				}
				name := domain.PlaceName(s.store.Places(), record.PlaceID)
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d votes for %s on %s (id %d)\n", record.VotesCount, name, record.Date, record.Timestamp)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&submission.PlaceID, "place", 0, "place id")
	cmd.Flags().StringVar(&submission.Date, "date", "", "polling date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&submission.VotesCount, "votes", 0, "total votes counted")
	cmd.Flags().IntVar(&submission.MaleVoters, "male", 0, "male voters")
	cmd.Flags().IntVar(&submission.FemaleVoters, "female", 0, "female voters")
	_ = cmd.MarkFlagRequired("place")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("votes")
	return cmd
}

// parseFlagArg reads the optional true/false argument after the date.
func parseFlagArg(args []string) (bool, error) {
	if len(args) < 2 {
		return true, nil
	}
	v, err := strconv.ParseBool(args[1])
	if err != nil {
		return false, fmt.Errorf("invalid value %q: %w", args[1], err)
	}
	return v, nil
}

func dateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "date",
		Short: "Mark polling dates active or complete",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "active <date> [true|false]",
		Short: "Set whether a polling date is active",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFlagArg(args)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(s *session) error {
				return s.store.SetDateActive(cmd.Context(), args[0], v)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "complete <date> [true|false]",
		Short: "Set whether a polling date is complete",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseFlagArg(args)
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(s *session) error {
				return s.store.SetDateComplete(cmd.Context(), args[0], v)
			})
		},
	})

	return cmd
}

func currentDateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "current-date",
		Short: "Select or clear the date the dashboard focuses on",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <date>",
		Short: "Select the current date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session) error {
				return s.store.SetCurrentDate(cmd.Context(), args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the current date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session) error {
				return s.store.ClearCurrentDate(cmd.Context())
			})
		},
	})

	return cmd
}

func resetCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the initial state for everyone in the room",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset discards every submission for all clients; pass --yes to confirm")
			}
			return withSession(cmd.Context(), func(s *session) error {
				return s.store.Reset(cmd.Context())
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
