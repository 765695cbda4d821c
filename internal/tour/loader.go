// Package tour loads and validates tour manifests.
package tour

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvallinder/audiowalk/internal/model"
)

// Load reads a tour manifest from a YAML file and validates it.
// Stop order in the manifest is authoritative.
func Load(path string) (*model.Tour, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tour manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a tour manifest.
func Parse(data []byte) (*model.Tour, error) {
	var t model.Tour
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tour manifest: %w", err)
	}
	if err := validate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func validate(t *model.Tour) error {
	if t.ID == "" {
		return fmt.Errorf("tour manifest missing id")
	}
	if len(t.Stops) == 0 {
		return fmt.Errorf("tour %q has no stops", t.ID)
	}

	seen := make(map[string]bool, len(t.Stops))
	for i := range t.Stops {
		s := &t.Stops[i]
		if s.ID == "" {
			return fmt.Errorf("tour %q: stop %d missing id", t.ID, i)
		}
		if seen[s.ID] {
			return fmt.Errorf("tour %q: duplicate stop id %q", t.ID, s.ID)
		}
		seen[s.ID] = true

		if s.Category == "" {
			s.Category = model.CategoryNarrated
		}
		if !model.ValidCategories[s.Category] {
			return fmt.Errorf("tour %q: stop %q has unknown category %q", t.ID, s.ID, s.Category)
		}

		// Invalid coordinates are allowed through; the proximity
		// monitor disqualifies them without erroring.
	}

	return nil
}
