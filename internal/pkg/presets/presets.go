// Package presets loads named spatial analyses from a YAML file so charts
// and the precompute worker can refer to them by name.
package presets

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
)

var ErrPresetNotFound = errors.New("preset not found")

// Preset is a named, reusable analysis.
type Preset struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Analysis    domain.SpatialAnalysis `json:"analysis" yaml:"analysis"`
}

type file struct {
	Presets []Preset `yaml:"presets"`
}

// Registry holds presets keyed by name. It is read-only after loading.
type Registry struct {
	byName map[string]Preset
	names  []string
}

// Load reads and parses the presets file at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse builds a registry from YAML. Duplicate names, unknown operation
// tags and incomplete analyses are errors.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	reg := &Registry{byName: make(map[string]Preset, len(f.Presets))}
	for i, p := range f.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset #%d: name is required", i+1)
		}
		if _, dup := reg.byName[p.Name]; dup {
			return nil, fmt.Errorf("preset %q: duplicate name", p.Name)
		}
		if err := p.Analysis.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
		reg.byName[p.Name] = p
		reg.names = append(reg.names, p.Name)
	}
	sort.Strings(reg.names)
	return reg, nil
}

// Get returns the preset with the given name.
func (r *Registry) Get(name string) (Preset, error) {
	p, ok := r.byName[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
	}
	return p, nil
}

// Names returns preset names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// List returns all presets sorted by name.
func (r *Registry) List() []Preset {
	out := make([]Preset, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}
