// Package multimatch hosts independent match instances in one process.
package multimatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DefaultMatchID string      `yaml:"default_match_id"`
	Matches        []MatchSpec `yaml:"matches"`
}

type MatchSpec struct {
	ID string `yaml:"id"`
	// Map is a map bundle path, relative to the directory of matches.yaml.
	Map      string `yaml:"map"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Load reads matches.yaml. An empty path yields a single match on the
// bundled skirmish map.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := defaults()
		cfg.Normalize("")
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("matches.yaml: %w", err)
	}
	cfg.Normalize(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("matches.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultMatchID: "skirmish",
		Matches:        []MatchSpec{{ID: "skirmish", Map: filepath.Join("configs", "maps", "skirmish.yaml")}},
	}
}

// Normalize trims fields, assigns a random id to unnamed matches, drops
// disabled entries and resolves map paths against baseDir.
func (c *Config) Normalize(baseDir string) {
	if c == nil {
		return
	}
	out := c.Matches[:0]
	for _, m := range c.Matches {
		if m.Disabled {
			continue
		}
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.Map = strings.TrimSpace(m.Map)
		if m.Map != "" && baseDir != "" && !filepath.IsAbs(m.Map) {
			m.Map = filepath.Join(baseDir, m.Map)
		}
		out = append(out, m)
	}
	c.Matches = out
	c.DefaultMatchID = strings.TrimSpace(c.DefaultMatchID)
	if c.DefaultMatchID == "" && len(c.Matches) > 0 {
		c.DefaultMatchID = c.Matches[0].ID
	}
}

func (c Config) Validate() error {
	if len(c.Matches) == 0 {
		return fmt.Errorf("no matches configured")
	}
	seen := map[string]bool{}
	for _, m := range c.Matches {
		if !validID(m.ID) {
			return fmt.Errorf("invalid match id %q", m.ID)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate match id %q", m.ID)
		}
		seen[m.ID] = true
		if m.Map == "" {
			return fmt.Errorf("match %s: missing map", m.ID)
		}
	}
	if !seen[c.DefaultMatchID] {
		return fmt.Errorf("default_match_id %q not configured", c.DefaultMatchID)
	}
	return nil
}

// Match ids name data directories, so they stay path-safe.
func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
