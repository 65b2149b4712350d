package calibration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// markerFile is the on-disk shape of a hand-edited calibration file:
//
//	markers:
//	  - id: 1
//	    original: {x: 100, y: 200, color: "#cc3311"}
//	    rendered: {x: 105, y: 197}
type markerFile struct {
	Markers []MarkerPair `yaml:"markers"`
}

// LoadFile reads marker pairs from a YAML file into a fresh Set. IDs are
// validated as positive and unique; missing IDs are assigned in file order.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var f markerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse calibration file: %w", err)
	}

	s := NewSet()
	seen := make(map[int]bool, len(f.Markers))
	for i := range f.Markers {
		p := f.Markers[i]
		if p.ID == 0 {
			p.ID = s.nextID
		}
		if p.ID < 0 {
			return nil, fmt.Errorf("marker %d: id must be positive, got %d", i, p.ID)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("marker %d: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = true

		pair := p.clone()
		s.pairs = append(s.pairs, &pair)
		if p.ID >= s.nextID {
			s.nextID = p.ID + 1
		}
	}
	return s, nil
}

// SaveFile writes the set's pairs to a YAML file in the LoadFile format.
func (s *Set) SaveFile(path string) error {
	data, err := yaml.Marshal(markerFile{Markers: s.Pairs()})
	if err != nil {
		return fmt.Errorf("failed to encode calibration file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}
	return nil
}
