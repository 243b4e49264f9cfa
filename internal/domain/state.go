package domain

import (
	"fmt"
	"slices"
)

// SyncState is the subset of client state exchanged over the relay and persisted locally.
// Delivery replaces it wholesale, so every field must always be present.
type SyncState struct {
	VotingData   []VotingData  `json:"votingData"`
	ActivityLogs []ActivityLog `json:"activityLogs"`
	VotingDates  []VotingDate  `json:"votingDates"`
	CurrentDate  *string       `json:"currentDate"`
}

// Clone returns a deep copy with nil slices replaced by empty ones.
func (s SyncState) Clone() SyncState {
	out := SyncState{
		VotingData:   slices.Clone(s.VotingData),
		ActivityLogs: slices.Clone(s.ActivityLogs),
		VotingDates:  slices.Clone(s.VotingDates),
	}
	if s.CurrentDate != nil {
		d := *s.CurrentDate
		out.CurrentDate = &d
	}
	return out.Normalize()
}

// Normalize replaces nil slices with empty ones so that empty states encode as [] on the wire.
func (s SyncState) Normalize() SyncState {
	if s.VotingData == nil {
		s.VotingData = []VotingData{}
	}
	if s.ActivityLogs == nil {
		s.ActivityLogs = []ActivityLog{}
	}
	if s.VotingDates == nil {
		s.VotingDates = []VotingDate{}
	}
	return s
}

// Validate checks the shape of a received state before it is relayed or applied.
func (s SyncState) Validate() error {
	if len(s.ActivityLogs) != len(s.VotingData) {
		return fmt.Errorf("%w: %d activity logs for %d voting records", ErrInvalidState, len(s.ActivityLogs), len(s.VotingData))
	}
	for i, d := range s.VotingData {
		if err := d.check(); err != nil {
			return fmt.Errorf("%w: votingData[%d] %w", ErrInvalidState, i, err)
		}
	}
	for i, d := range s.VotingDates {
		if d.Date == "" {
			return fmt.Errorf("%w: votingDates[%d] has no date", ErrInvalidState, i)
		}
	}
	return nil
}

// StringPtr is a convenience for optional date arguments.
func StringPtr(s string) *string {
	return &s
}
