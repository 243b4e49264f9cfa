package syncstore

import (
	"context"
	"log/slog"
	"slices"

	"github.com/pscheid92/votepulse/internal/domain"
)

// AddVotingData stamps the submission, records it together with its activity log entry,
// and publishes the new state. An unknown place yields an empty place name.
func (s *Store) AddVotingData(ctx context.Context, submission domain.NewVotingData) (domain.VotingData, error) {
	if err := submission.Validate(); err != nil {
		return domain.VotingData{}, err
	}

	return call(ctx, s, func() domain.VotingData {
		record := submission.WithTimestamp(s.nextTimestamp())
		placeName := domain.PlaceName(s.catalog.Places, record.PlaceID)

		next := s.state.Clone()
		next.VotingData = append(next.VotingData, record)
		next.ActivityLogs = append([]domain.ActivityLog{domain.NewActivityLog(record, placeName)}, next.ActivityLogs...)
		s.commit(next, true)

		slog.Info("Voting data added", "place_id", record.PlaceID, "place", placeName, "date", record.Date, "votes", record.VotesCount)
		return record
	})
}

// nextTimestamp returns the current time in milliseconds. It only moves forward
// when another record already uses that millisecond, so activity log IDs stay
// unique without drifting towards a peer's clock.
func (s *Store) nextTimestamp() int64 {
	ts := s.clock.Now().UnixMilli()
	for slices.ContainsFunc(s.state.VotingData, func(r domain.VotingData) bool { return r.Timestamp == ts }) {
		ts++
	}
	return ts
}

// SetDateActive sets the isActive flag of date. Unknown dates are ignored.
func (s *Store) SetDateActive(ctx context.Context, date string, isActive bool) error {
	return s.updateDate(ctx, date, func(d *domain.VotingDate) { d.IsActive = isActive })
}

// SetDateComplete sets the isComplete flag of date. Unknown dates are ignored.
func (s *Store) SetDateComplete(ctx context.Context, date string, isComplete bool) error {
	return s.updateDate(ctx, date, func(d *domain.VotingDate) { d.IsComplete = isComplete })
}

func (s *Store) updateDate(ctx context.Context, date string, apply func(*domain.VotingDate)) error {
	_, err := call(ctx, s, func() struct{} {
		next := s.state.Clone()
		for i := range next.VotingDates {
			if next.VotingDates[i].Date == date {
				apply(&next.VotingDates[i])
				s.commit(next, true)
				return struct{}{}
			}
		}
		slog.Debug("Ignoring update for unknown voting date", "date", date)
		return struct{}{}
	})
	return err
}

// SetCurrentDate points currentDate at date.
func (s *Store) SetCurrentDate(ctx context.Context, date string) error {
	return s.mutate(ctx, func(next *domain.SyncState) { next.CurrentDate = domain.StringPtr(date) })
}

// ClearCurrentDate sets currentDate to null.
func (s *Store) ClearCurrentDate(ctx context.Context) error {
	return s.mutate(ctx, func(next *domain.SyncState) { next.CurrentDate = nil })
}

// Reset restores the catalog defaults and publishes them.
func (s *Store) Reset(ctx context.Context) error {
	return s.mutate(ctx, func(next *domain.SyncState) { *next = s.catalog.InitialState() })
}

func (s *Store) mutate(ctx context.Context, apply func(*domain.SyncState)) error {
	_, err := call(ctx, s, func() struct{} {
		next := s.state.Clone()
		apply(&next)
		s.commit(next, true)
		return struct{}{}
	})
	return err
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot(ctx context.Context) (domain.SyncState, error) {
	return call(ctx, s, func() domain.SyncState { return s.state.Clone() })
}

// Status reports the connection state.
func (s *Store) Status(ctx context.Context) (Status, error) {
	return call(ctx, s, s.status)
}

// PlaceData returns the records for placeID, filtered by date when date is non-nil.
func (s *Store) PlaceData(ctx context.Context, placeID int, date *string) ([]domain.VotingData, error) {
	return call(ctx, s, func() []domain.VotingData {
		return domain.PlaceData(s.state.VotingData, placeID, date)
	})
}

// ZonalData aggregates all records, or those of date when date is non-nil.
func (s *Store) ZonalData(ctx context.Context, date *string) (domain.ZonalStats, error) {
	return call(ctx, s, func() domain.ZonalStats {
		return domain.Zonal(s.state.VotingData, s.catalog.Places, date)
	})
}

// CumulativeVotes sums votes per place for records dated on or before upToDate,
// or for all records when upToDate is nil.
func (s *Store) CumulativeVotes(ctx context.Context, upToDate *string) (domain.Cumulative, error) {
	return call(ctx, s, func() domain.Cumulative {
		return domain.CumulativeVotes(s.state.VotingData, upToDate)
	})
}
