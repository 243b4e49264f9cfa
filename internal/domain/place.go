package domain

// Place is a polling location. The list is static configuration and is never synced.
type Place struct {
	ID          int    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	TotalVoters int    `json:"totalVoters" yaml:"totalVoters"`
}

// PlaceName returns the name of the place with the given id, or "" if not found.
func PlaceName(places []Place, placeID int) string {
	for _, p := range places {
		if p.ID == placeID {
			return p.Name
		}
	}
	return ""
}

// TotalVoters sums the electorate across all places.
func TotalVoters(places []Place) int {
	total := 0
	for _, p := range places {
		total += p.TotalVoters
	}
	return total
}
