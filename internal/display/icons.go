package display

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// IconMap maps weather type descriptions to icon ids.
type IconMap struct {
	Fallback int            `yaml:"fallback"`
	Mappings map[string]int `yaml:"mappings"`
}

// LoadIconMap reads an icon mapping file:
//
//	fallback: 0
//	mappings:
//	  "Clear": 1
//	  "Partly cloudy": 2
//
// A missing file is not an error; the returned map then resolves everything
// to the fallback icon.
func LoadIconMap(path string) (*IconMap, error) {
	m := &IconMap{Mappings: map[string]int{}}
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read icon map: %w", err)
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse icon map %s: %w", path, err)
	}
	if m.Mappings == nil {
		m.Mappings = map[string]int{}
	}
	return m, nil
}

// Lookup returns the icon id for weatherType and whether it was mapped.
// Matching is exact first, then case-insensitive. When several keys differ
// only by case, the lexically smallest one wins.
func (m *IconMap) Lookup(weatherType string) (int, bool) {
	if id, ok := m.Mappings[weatherType]; ok {
		return id, true
	}
	var (
		best    string
		bestID  int
		matched bool
	)
	for k, id := range m.Mappings {
		if !strings.EqualFold(k, weatherType) {
			continue
		}
		if !matched || k < best {
			best, bestID, matched = k, id, true
		}
	}
	if matched {
		return bestID, true
	}
	return m.Fallback, false
}

// IconID is Lookup without the mapped flag.
func (m *IconMap) IconID(weatherType string) int {
	id, _ := m.Lookup(weatherType)
	return id
}

// Unmapped returns the types that would fall back.
func (m *IconMap) Unmapped(weatherTypes []string) []string {
	var out []string
	for _, wt := range weatherTypes {
		if _, ok := m.Lookup(wt); !ok {
			out = append(out, wt)
		}
	}
	return out
}
