package domain

// ZonalStats is a point-in-time aggregate across all places.
type ZonalStats struct {
	TotalVotes       int     `json:"totalVotes"`
	TotalMale        int     `json:"totalMale"`
	TotalFemale      int     `json:"totalFemale"`
	VotingPercentage float64 `json:"votingPercentage"`
}

// Cumulative is the vote total grouped by place.
type Cumulative struct {
	ByPlace map[int]int `json:"byPlace"`
	Total   int         `json:"total"`
}

// PlaceData returns the records for placeID, restricted to date when given.
func PlaceData(records []VotingData, placeID int, date *string) []VotingData {
	out := make([]VotingData, 0)
	for _, r := range records {
		if r.PlaceID != placeID {
			continue
		}
		if date != nil && r.Date != *date {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Zonal aggregates all records (or those on date) against the electorate of places.
func Zonal(records []VotingData, places []Place, date *string) ZonalStats {
	var stats ZonalStats
	for _, r := range records {
		if date != nil && r.Date != *date {
			continue
		}
		stats.TotalVotes += r.VotesCount
		stats.TotalMale += r.MaleVoters
		stats.TotalFemale += r.FemaleVoters
	}
	if electorate := TotalVoters(places); electorate > 0 {
		stats.VotingPercentage = float64(stats.TotalVotes) / float64(electorate) * 100
	}
	return stats
}

// CumulativeVotes sums votesCount per place over records dated on or before upToDate.
// Date keys are ISO calendar dates, so lexical order is chronological.
func CumulativeVotes(records []VotingData, upToDate *string) Cumulative {
	out := Cumulative{ByPlace: make(map[int]int)}
	for _, r := range records {
		if upToDate != nil && r.Date > *upToDate {
			continue
		}
		out.ByPlace[r.PlaceID] += r.VotesCount
		out.Total += r.VotesCount
	}
	return out
}
