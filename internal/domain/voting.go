package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// VotingDate is one polling day.
type VotingDate struct {
	Date       string `json:"date" yaml:"date"`
	IsActive   bool   `json:"isActive" yaml:"isActive"`
	IsComplete bool   `json:"isComplete" yaml:"isComplete"`
}

// Submitter identifies who submitted a record.
type Submitter struct {
	Role string `json:"role"`
}

// NewVotingData is a vote submission before the store assigns its timestamp.
type NewVotingData struct {
	PlaceID      int       `json:"placeId"`
	Date         string    `json:"date"`
	VotesCount   int       `json:"votesCount"`
	MaleVoters   int       `json:"maleVoters"`
	FemaleVoters int       `json:"femaleVoters"`
	SubmittedBy  Submitter `json:"submittedBy"`
}

// VotingData is an append-only vote submission record.
// Timestamp is milliseconds since the Unix epoch.
type VotingData struct {
	PlaceID      int       `json:"placeId"`
	Date         string    `json:"date"`
	VotesCount   int       `json:"votesCount"`
	MaleVoters   int       `json:"maleVoters"`
	FemaleVoters int       `json:"femaleVoters"`
	SubmittedBy  Submitter `json:"submittedBy"`
	Timestamp    int64     `json:"timestamp"`
}

// WithTimestamp stamps a new submission.
func (n NewVotingData) WithTimestamp(ts int64) VotingData {
	return VotingData{
		PlaceID:      n.PlaceID,
		Date:         n.Date,
		VotesCount:   n.VotesCount,
		MaleVoters:   n.MaleVoters,
		FemaleVoters: n.FemaleVoters,
		SubmittedBy:  n.SubmittedBy,
		Timestamp:    ts,
	}
}

// Validate rejects submissions that would make the synced state invalid.
func (n NewVotingData) Validate() error {
	if err := n.WithTimestamp(0).check(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	return nil
}

func (d VotingData) check() error {
	switch {
	case d.Date == "":
		return errors.New("has no date")
	case d.VotesCount < 0 || d.MaleVoters < 0 || d.FemaleVoters < 0:
		return errors.New("has negative counts")
	case d.SubmittedBy.Role == "":
		return errors.New("has no submitter role")
	}
	return nil
}

// ActivityLog is the audit entry created alongside every VotingData insert.
type ActivityLog struct {
	ID           string `json:"id"`
	Timestamp    int64  `json:"timestamp"`
	PlaceName    string `json:"placeName"`
	Role         string `json:"role"`
	VotesCount   int    `json:"votesCount"`
	MaleVoters   int    `json:"maleVoters"`
	FemaleVoters int    `json:"femaleVoters"`
	Date         string `json:"date"`
}

// NewActivityLog derives the audit entry for a stamped record.
func NewActivityLog(record VotingData, placeName string) ActivityLog {
	return ActivityLog{
		ID:           strconv.FormatInt(record.Timestamp, 10),
		Timestamp:    record.Timestamp,
		PlaceName:    placeName,
		Role:         record.SubmittedBy.Role,
		VotesCount:   record.VotesCount,
		MaleVoters:   record.MaleVoters,
		FemaleVoters: record.FemaleVoters,
		Date:         record.Date,
	}
}
