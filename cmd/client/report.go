package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"

	"github.com/pscheid92/votepulse/internal/domain"
	"github.com/spf13/cobra"
)

// optionalString maps an unset flag to nil.
func optionalString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func statsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show zonal totals and cumulative votes per place",
		RunE: func(cmd *cobra.Command, args []string) error {
			date := optionalString(cmd, "date")
			upTo := optionalString(cmd, "up-to")
			return withSession(cmd.Context(), func(s *session) error {
				zonal, err := s.store.ZonalData(cmd.Context(), date)
				if err != nil {
					return err
				}
				cumulative, err := s.store.CumulativeVotes(cmd.Context(), upTo)
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), s.store.Places(), zonal, cumulative)
				return nil
			})
		},
	}

	cmd.Flags().String("date", "", "restrict zonal totals to one date")
	cmd.Flags().String("up-to", "", "only count dates up to and including this one")
	return cmd
}

func printStats(w io.Writer, places []domain.Place, zonal domain.ZonalStats, cumulative domain.Cumulative) {
	fmt.Fprintf(w, "Votes: %d (male %d, female %d), turnout %.2f%%\n\n",
		zonal.TotalVotes, zonal.TotalMale, zonal.TotalFemale, zonal.VotingPercentage)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPLACE\tVOTERS\tCUMULATIVE")
	for _, p := range places {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", p.ID, p.Name, p.TotalVoters, cumulative.ByPlace[p.ID])
	}
	fmt.Fprintf(tw, "\tTotal\t%d\t%d\n", domain.TotalVoters(places), cumulative.Total)
	_ = tw.Flush()
}

func placeCommand() *cobra.Command {
	var placeID int

	cmd := &cobra.Command{
		Use:   "place",
		Short: "List the submissions for one place",
		RunE: func(cmd *cobra.Command, args []string) error {
			date := optionalString(cmd, "date")
			return withSession(cmd.Context(), func(s *session) error {
				records, err := s.store.PlaceData(cmd.Context(), placeID, date)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tVOTES\tMALE\tFEMALE\tROLE\tTIMESTAMP")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%d\n", r.Date, r.VotesCount, r.MaleVoters, r.FemaleVoters, r.SubmittedBy.Role, r.Timestamp)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&placeID, "id", 0, "place id")
	cmd.Flags().String("date", "", "restrict to one date")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func logCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the most recent submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session) error {
				state, err := s.store.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				logs := state.ActivityLogs
				if limit > 0 && len(logs) > limit {
					logs = logs[:limit]
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tPLACE\tROLE\tVOTES")
				for _, l := range logs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", l.ID, l.Date, l.PlaceName, l.Role, l.VotesCount)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries, 0 for all")
	return cmd
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the relay connection status and local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session) error {
				return printCurrent(cmd.Context(), cmd.OutOrStdout(), s)
			})
		},
	}
}

func printSummary(w io.Writer, status string, state domain.SyncState) {
	current := "none"
	if state.CurrentDate != nil {
		current = *state.CurrentDate
	}
	active := make([]string, 0, len(state.VotingDates))
	for _, d := range state.VotingDates {
		if d.IsActive {
			active = append(active, d.Date)
		}
	}
	slices.Sort(active)
	fmt.Fprintf(w, "status=%s records=%d current=%s active=%v\n", status, len(state.VotingData), current, active)
}

func watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print a line every time the shared state changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withSession(ctx, func(s *session) error {
				updates, unsubscribe := s.store.Subscribe()
				defer unsubscribe()

				if err := printCurrent(ctx, cmd.OutOrStdout(), s); err != nil {
					return err
				}
				for {
					select {
					case state, ok := <-updates:
						if !ok {
							return nil
						}
						status, err := s.store.Status(ctx)
						if err != nil {
							return err
						}
						printSummary(cmd.OutOrStdout(), status.String(), state)
					case <-ctx.Done():
						return nil
					}
				}
			})
		},
	}
}

func printCurrent(ctx context.Context, w io.Writer, s *session) error {
	status, err := s.store.Status(ctx)
	if err != nil {
		return err
	}
	state, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	printSummary(w, status.String(), state)
	return nil
}
