// Package mapbundle loads the static description of a battlefield: grid
// dimensions, terrain rows, cities with their zones, farms, supply links,
// depots and initial deployments.
package mapbundle

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Bundle struct {
	Name    string   `yaml:"name"`
	Width   int      `yaml:"width"`
	Height  int      `yaml:"height"`
	Terrain []string `yaml:"terrain,omitempty"`
	Hills   []string `yaml:"hills,omitempty"`

	Cities      []City       `yaml:"cities"`
	Farms       []Farm       `yaml:"farms,omitempty"`
	FarmLinks   []FarmLink   `yaml:"farm_links,omitempty"`
	Depots      []Depot      `yaml:"depots,omitempty"`
	Deployments []Deployment `yaml:"deployments,omitempty"`
}

type City struct {
	ID         string   `yaml:"id"`
	Kind       string   `yaml:"kind"` // "home" or "neutral"
	Team       string   `yaml:"team,omitempty"`
	Anchor     [2]int   `yaml:"anchor"`
	Zone       [][2]int `yaml:"zone,omitempty"`
	ZoneRadius int      `yaml:"zone_radius,omitempty"`
}

type Farm struct {
	ID     string `yaml:"id"`
	Anchor [2]int `yaml:"anchor"`
}

type FarmLink struct {
	Farm string `yaml:"farm"`
	City string `yaml:"city"`
}

type Depot struct {
	ID     string `yaml:"id"`
	City   string `yaml:"city"`
	Anchor [2]int `yaml:"anchor"`
}

type Deployment struct {
	Team     string     `yaml:"team"`
	Type     string     `yaml:"type,omitempty"`
	At       [2]float64 `yaml:"at"`
	Rotation float64    `yaml:"rotation,omitempty"`
	Count    int        `yaml:"count,omitempty"`
}

func Load(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("map bundle: %w", err)
	}
	b.Normalize()
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("map bundle %s: %w", b.Name, err)
	}
	return &b, nil
}

// Normalize expands zone radii into explicit zone cells and fills defaults.
func (b *Bundle) Normalize() {
	for i := range b.Cities {
		c := &b.Cities[i]
		c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
		if c.Kind == "" {
			c.Kind = "neutral"
		}
		if len(c.Zone) == 0 && c.ZoneRadius > 0 {
			for dr := -c.ZoneRadius; dr <= c.ZoneRadius; dr++ {
				for dc := -c.ZoneRadius; dc <= c.ZoneRadius; dc++ {
					col, row := c.Anchor[0]+dc, c.Anchor[1]+dr
					if b.InBounds(col, row) {
						c.Zone = append(c.Zone, [2]int{col, row})
					}
				}
			}
		}
	}
	for i := range b.Deployments {
		if b.Deployments[i].Count <= 0 {
			b.Deployments[i].Count = 1
		}
	}
}

func (b *Bundle) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("bad dimensions %dx%d", b.Width, b.Height)
	}
	seen := map[string]bool{}
	for _, c := range b.Cities {
		if c.ID == "" {
			return fmt.Errorf("city with empty id")
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate city id %q", c.ID)
		}
		seen[c.ID] = true
		if !b.InBounds(c.Anchor[0], c.Anchor[1]) {
			return fmt.Errorf("city %s: anchor out of bounds", c.ID)
		}
		if c.Kind != "home" && c.Kind != "neutral" {
			return fmt.Errorf("city %s: unknown kind %q", c.ID, c.Kind)
		}
		if c.Kind == "home" && c.Team == "" {
			return fmt.Errorf("city %s: home city without team", c.ID)
		}
	}
	farms := map[string]bool{}
	for _, f := range b.Farms {
		if f.ID == "" || farms[f.ID] {
			return fmt.Errorf("bad or duplicate farm id %q", f.ID)
		}
		if !b.InBounds(f.Anchor[0], f.Anchor[1]) {
			return fmt.Errorf("farm %s: anchor out of bounds", f.ID)
		}
		farms[f.ID] = true
	}
	for _, l := range b.FarmLinks {
		if !farms[l.Farm] {
			return fmt.Errorf("farm link: unknown farm %q", l.Farm)
		}
		if !seen[l.City] {
			return fmt.Errorf("farm link: unknown city %q", l.City)
		}
	}
	for _, d := range b.Depots {
		if d.ID == "" {
			return fmt.Errorf("depot with empty id")
		}
		if !seen[d.City] {
			return fmt.Errorf("depot %s: unknown city %q", d.ID, d.City)
		}
		if !b.InBounds(d.Anchor[0], d.Anchor[1]) {
			return fmt.Errorf("depot %s: anchor out of bounds", d.ID)
		}
	}
	return nil
}

func (b *Bundle) InBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < b.Width && row < b.Height
}

// City returns the city with the given id, or nil.
func (b *Bundle) City(id string) *City {
	for i := range b.Cities {
		if b.Cities[i].ID == id {
			return &b.Cities[i]
		}
	}
	return nil
}

// Farm returns the farm with the given id, or nil.
func (b *Bundle) Farm(id string) *Farm {
	for i := range b.Farms {
		if b.Farms[i].ID == id {
			return &b.Farms[i]
		}
	}
	return nil
}

// CityIDs returns the city ids in a stable order.
func (b *Bundle) CityIDs() []string {
	out := make([]string, 0, len(b.Cities))
	for _, c := range b.Cities {
		out = append(out, c.ID)
	}
	sort.Strings(out)
	return out
}
