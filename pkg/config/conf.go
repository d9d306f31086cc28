// Package config reads the YAML descriptors that parameterize the analysis
// operations: track selection for build, histogram/category definitions
// for hist.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Classifier describes a trained track classifier: where its model lives,
// the score thresholds to scan, and the ordered input variable expressions.
// Each cut value defines an independent view of which tracks are selected.
type Classifier struct {
	Name string    `yaml:"name"`
	Path string    `yaml:"path"`
	Cuts []float64 `yaml:"cuts"`
	Vars []string  `yaml:"vars"`
}

// Selection is the build operation config: an optional rectangular track
// cut and an optional classifier. Both may be set; they are combined per
// track.
type Selection struct {
	TrackCut   string      `yaml:"track_cut,omitempty"`
	Classifier *Classifier `yaml:"classifier,omitempty"`
}

// Histogram describes one fixed-range histogram of a discriminant-dataset
// variable. When DiscrEff is set, an efficiency-vs-cut curve is derived
// from the filled histogram and stored next to it.
type Histogram struct {
	Name     string  `yaml:"name"`
	Title    string  `yaml:"title,omitempty"`
	Bins     int     `yaml:"bins"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	Var      string  `yaml:"var"`
	DiscrEff bool    `yaml:"discreff,omitempty"`
}

// CategoryCut selects a jet category (e.g. b, c, light, pileup) with a cut
// expression over the discriminant dataset fields.
type CategoryCut struct {
	Name string `yaml:"name"`
	Cut  string `yaml:"cut"`
}

// Analysis is the hist operation config.
type Analysis struct {
	Histograms []Histogram   `yaml:"histograms"`
	Categories []CategoryCut `yaml:"categories"`
}

// ReadSelection loads and validates a build selection config.
func ReadSelection(path string) (*Selection, error) {
	var s Selection
	if err := read(path, &s); err != nil {
		return nil, err
	}
	if c := s.Classifier; c != nil {
		if c.Name == "" || c.Path == "" {
			return nil, fmt.Errorf("classifier in %s requires name and path", path)
		}
		if len(c.Cuts) == 0 {
			return nil, fmt.Errorf("classifier %s requires at least one cut value", c.Name)
		}
	}
	return &s, nil
}

// ReadAnalysis loads and validates a hist analysis config.
func ReadAnalysis(path string) (*Analysis, error) {
	var a Analysis
	if err := read(path, &a); err != nil {
		return nil, err
	}
	if len(a.Histograms) == 0 {
		return nil, fmt.Errorf("no histograms defined in %s", path)
	}
	if len(a.Categories) == 0 {
		return nil, fmt.Errorf("no categories defined in %s", path)
	}
	for _, h := range a.Histograms {
		if h.Name == "" || h.Var == "" {
			return nil, fmt.Errorf("histogram in %s requires name and var", path)
		}
		if h.Bins < 2 {
			return nil, fmt.Errorf("histogram %s requires at least 2 bins", h.Name)
		}
		if h.Max <= h.Min {
			return nil, fmt.Errorf("histogram %s has empty range [%v, %v)", h.Name, h.Min, h.Max)
		}
	}
	for _, c := range a.Categories {
		if c.Name == "" || c.Cut == "" {
			return nil, fmt.Errorf("category in %s requires name and cut", path)
		}
	}
	return &a, nil
}

func read(path string, v any) error {
	if path == "" {
		return errors.New("config path required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
