// Package mva loads trained track-classifier models and evaluates their
// discriminant score. A model is a YAML file holding an ordered variable
// list and the matching weights; the variable order is part of the model
// contract and must never be reshuffled by callers.
package mva

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Model is a trained track classifier. Variables and Weights are parallel,
// order-sensitive lists.
type Model struct {
	Name      string    `yaml:"name"`
	Variables []string  `yaml:"variables"`
	Weights   []float64 `yaml:"weights"`
	Bias      float64   `yaml:"bias"`
}

// Load reads a model file. A missing file is a configuration error and is
// reported before any event processing starts.
func Load(path string) (*Model, error) {
	if path == "" {
		return nil, errors.New("model path required")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("model file does not exist: %s", path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file %s: %w", path, err)
	}

	var m Model
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &m, nil
}

func (m *Model) validate() error {
	if m.Name == "" {
		return errors.New("model name required")
	}
	if len(m.Variables) == 0 {
		return errors.New("model has no variables")
	}
	if len(m.Weights) != len(m.Variables) {
		return fmt.Errorf("model has %d weights for %d variables", len(m.Weights), len(m.Variables))
	}
	return nil
}

// Score evaluates the discriminant for one set of variable values, given in
// the model's variable order. The response is squashed to (-1, 1).
func (m *Model) Score(vals []float64) (float64, error) {
	if len(vals) != len(m.Variables) {
		return 0, fmt.Errorf("model %s expects %d values, got %d", m.Name, len(m.Variables), len(vals))
	}
	s := m.Bias
	for i, v := range vals {
		s += m.Weights[i] * v
	}
	return math.Tanh(s), nil
}
