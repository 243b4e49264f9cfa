// Package catalog provides the static reference data: the place list and the initial polling calendar.
//
// The built-in catalog is embedded. A YAML file with the same shape can replace it at startup.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/pscheid92/votepulse/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is immutable after load.
type Catalog struct {
	Places      []domain.Place      `yaml:"places"`
	VotingDates []domain.VotingDate `yaml:"votingDates"`
	CurrentDate string              `yaml:"currentDate"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from path. An empty path yields the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Places) == 0 {
		return errors.New("catalog has no places")
	}
	seen := make(map[int]bool, len(c.Places))
	for _, p := range c.Places {
		if seen[p.ID] {
			return fmt.Errorf("catalog place id %d is duplicated", p.ID)
		}
		seen[p.ID] = true
	}
	if len(c.VotingDates) == 0 {
		return errors.New("catalog has no voting dates")
	}
	for _, d := range c.VotingDates {
		if d.Date == "" {
			return errors.New("catalog voting date has no date")
		}
	}
	return nil
}

// InitialState is the state a client starts from when nothing is persisted, and the target of a reset.
func (c *Catalog) InitialState() domain.SyncState {
	state := domain.SyncState{
		VotingData:   []domain.VotingData{},
		ActivityLogs: []domain.ActivityLog{},
		VotingDates:  slices.Clone(c.VotingDates),
	}
	if c.CurrentDate != "" {
		state.CurrentDate = domain.StringPtr(c.CurrentDate)
	}
	return state
}
