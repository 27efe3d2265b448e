package calendar

import (
	"fmt"
	"os"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Store is the immutable calendar of tracked indicators.
//
// It is built once by Load and read-only afterwards, so it is safe for
// concurrent use without locking.
type Store struct {
	byID  map[string]*Descriptor
	order []*Descriptor // insertion order from the source file
}

// descriptorYAML mirrors one indicator entry in the calendar file.
type descriptorYAML struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Source         string `yaml:"source"`
	SeriesID       string `yaml:"series_id"`
	ReleasePattern string `yaml:"release_pattern"`
	ReleaseTime    string `yaml:"release_time"`
	Importance     string `yaml:"importance"`
}

// LoadFile reads and parses a calendar YAML file.
func LoadFile(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar file: %w", err)
	}
	return Load(b)
}

// Load parses calendar configuration from YAML bytes.
//
// The document is a mapping from indicator id to its descriptor; the
// mapping key and the entry's id field must agree. Entry order in the
// file is preserved (All returns it).
//
// All validation happens here: missing fields, bad times, duplicate ids,
// unparseable patterns, references to unknown indicators, and reference
// cycles are all ConfigErrors. A store that loads successfully never
// produces an error at evaluation time.
func Load(data []byte) (*Store, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("yaml: %v", err)}
	}
	if len(root.Content) == 0 {
		return nil, &ConfigError{Reason: "empty calendar file"}
	}
	doc := root.Content[0]

	// Accept either a top-level mapping or one nested under "indicators".
	if doc.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Content); i += 2 {
			if doc.Content[i].Value == "indicators" {
				doc = doc.Content[i+1]
				break
			}
		}
	}
	if doc.Kind != yaml.MappingNode {
		return nil, &ConfigError{Reason: "calendar must be a mapping of indicator id to descriptor"}
	}

	st := &Store{byID: make(map[string]*Descriptor)}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := strings.TrimSpace(doc.Content[i].Value)
		var raw descriptorYAML
		if err := doc.Content[i+1].Decode(&raw); err != nil {
			return nil, configErrf(key, "decode: %v", err)
		}

		d, err := buildDescriptor(key, raw)
		if err != nil {
			return nil, err
		}
		if _, dup := st.byID[d.ID]; dup {
			return nil, configErrf(d.ID, "duplicate indicator id")
		}
		st.byID[d.ID] = d
		st.order = append(st.order, d)
	}

	if len(st.order) == 0 {
		return nil, &ConfigError{Reason: "calendar has no indicators"}
	}
	if err := st.checkReferences(); err != nil {
		return nil, err
	}
	return st, nil
}

func buildDescriptor(key string, raw descriptorYAML) (*Descriptor, error) {
	if raw.ID == "" {
		raw.ID = key
	}
	if key != "" && raw.ID != key {
		return nil, configErrf(key, "id field %q does not match mapping key", raw.ID)
	}
	id := raw.ID
	if id == "" {
		return nil, &ConfigError{Reason: "indicator with empty id"}
	}

	for _, f := range []struct{ name, v string }{
		{"name", raw.Name},
		{"source", raw.Source},
		{"series_id", raw.SeriesID},
		{"release_pattern", raw.ReleasePattern},
		{"release_time", raw.ReleaseTime},
		{"importance", raw.Importance},
	} {
		if strings.TrimSpace(f.v) == "" {
			return nil, configErrf(id, "missing required field %q", f.name)
		}
	}

	pat, err := ParsePattern(raw.ReleasePattern)
	if err != nil {
		return nil, configErrf(id, "%v", err)
	}
	rt, err := ParseClockTime(raw.ReleaseTime)
	if err != nil {
		return nil, configErrf(id, "%v", err)
	}
	imp, err := ParseImportance(raw.Importance)
	if err != nil {
		return nil, configErrf(id, "%v", err)
	}

	return &Descriptor{
		ID:          id,
		Name:        raw.Name,
		Source:      raw.Source,
		SeriesID:    raw.SeriesID,
		Pattern:     pat,
		RawPattern:  raw.ReleasePattern,
		ReleaseTime: rt,
		Importance:  imp,
	}, nil
}

// checkReferences validates the relative-pattern dependency graph:
// every referenced id must exist and the graph must be acyclic, so
// evaluation-time resolution is guaranteed to terminate.
func (s *Store) checkReferences() error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(s.byID))

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return configErrf(id, "circular release_pattern reference")
		case black:
			return nil
		}
		color[id] = gray
		d := s.byID[id]
		if d.Pattern.Kind == KindRelative {
			ref := d.Pattern.Ref
			next, ok := s.byID[ref]
			if !ok {
				return configErrf(id, "release_pattern references unknown indicator %q", ref)
			}
			if err := visit(next.ID); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for _, d := range s.order {
		if err := visit(d.ID); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the descriptor for id, or a NotFoundError.
func (s *Store) Get(id string) (*Descriptor, error) {
	d, ok := s.byID[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return d, nil
}

// All returns every descriptor in source-file order. The returned slice
// is a copy; the descriptors themselves are shared and must not be
// mutated.
func (s *Store) All() []*Descriptor {
	out := make([]*Descriptor, len(s.order))
	copy(out, s.order)
	return out
}

// Len reports how many indicators the store holds.
func (s *Store) Len() int { return len(s.order) }
