// Package catalog serves the fest's event list. It is reference data
// compiled into the binary and is the only source of prices.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

//go:embed events.yaml
var defaultEvents []byte

// Event is one catalog entry.
type Event struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category" yaml:"category"`
	Host        string `json:"host" yaml:"host"`
	Date        string `json:"date" yaml:"date"`
	Description string `json:"description" yaml:"description"`
	Price       int64  `json:"price" yaml:"price"`
	PriceNote   string `json:"priceNote" yaml:"price_note"`
	TeamSize    int    `json:"teamSize" yaml:"team_size"`
	IsTeamEvent bool   `json:"isTeamEvent" yaml:"-"`
}

// BilledPerTeam reports whether one payment covers the whole team. Any
// other pricing model means every member pays for themselves.
func (e Event) BilledPerTeam() bool {
	return strings.Contains(strings.ToLower(e.PriceNote), "per team")
}

// Catalog is an immutable, id-indexed event list.
type Catalog struct {
	events []Event
	byID   map[string]Event
}

type file struct {
	Events []Event `yaml:"events"`
}

// Default parses the embedded catalog. It panics on a malformed file
// since that is a build defect.
func Default() *Catalog {
	c, err := Parse(defaultEvents)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded events.yaml: %v", err))
	}
	return c
}

// Parse builds a catalog from YAML. Ids are slug-normalised and
// missing ids are derived from the name.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Events)
}

func New(events []Event) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Event, len(events))}
	for _, e := range events {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			return nil, fmt.Errorf("event without a name")
		}
		if e.ID == "" {
			e.ID = e.Name
		}
		e.ID = slug.Make(e.ID)
		if e.Price < 0 {
			return nil, fmt.Errorf("event %s: negative price", e.ID)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate event id %s", e.ID)
		}
		e.IsTeamEvent = e.TeamSize > 1
		c.byID[e.ID] = e
		c.events = append(c.events, e)
	}
	sort.SliceStable(c.events, func(i, j int) bool { return c.events[i].Date < c.events[j].Date })
	return c, nil
}

// Get looks an event up by id. Lookups are case-insensitive.
func (c *Catalog) Get(id string) (Event, bool) {
	e, ok := c.byID[slug.Make(id)]
	return e, ok
}

// All returns the events ordered by date.
func (c *Catalog) All() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// ByCategory returns the events of one category, matched case-insensitively.
func (c *Catalog) ByCategory(category string) []Event {
	var out []Event
	for _, e := range c.events {
		if strings.EqualFold(e.Category, category) {
			out = append(out, e)
		}
	}
	return out
}
