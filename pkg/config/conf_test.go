package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestReadSelection(t *testing.T) {
	path := writeConfig(t, `
track_cut: "Track_pt > 1"
classifier:
  name: tracksel
  path: ./model.yaml
  cuts: [0.1, 0.3, 0.5]
  vars: [Track_IPsig, Track_pt]
`)
	s, err := ReadSelection(path)
	require.NoError(t, err)
	assert.Equal(t, "Track_pt > 1", s.TrackCut)
	require.NotNil(t, s.Classifier)
	assert.Len(t, s.Classifier.Cuts, 3)
	assert.Equal(t, []string{"Track_IPsig", "Track_pt"}, s.Classifier.Vars)
}

func TestReadSelection_CutsOnly(t *testing.T) {
	path := writeConfig(t, `track_cut: "Track_pt > 1"`)
	s, err := ReadSelection(path)
	require.NoError(t, err)
	assert.Nil(t, s.Classifier)
}

func TestReadSelection_ClassifierWithoutCuts(t *testing.T) {
	path := writeConfig(t, `
classifier:
  name: tracksel
  path: ./model.yaml
`)
	_, err := ReadSelection(path)
	assert.Error(t, err)
}

func TestReadAnalysis(t *testing.T) {
	path := writeConfig(t, `
histograms:
  - name: tche
    title: "TCHE"
    bins: 100
    min: -10
    max: 30
    var: TCHE
    discreff: true
categories:
  - name: b
    cut: "abs(Jet_flavour) == 5 && Jet_genpt >= 8"
  - name: light
    cut: "(abs(Jet_flavour) < 4 || Jet_flavour == 21) && Jet_genpt >= 8"
`)
	a, err := ReadAnalysis(path)
	require.NoError(t, err)
	require.Len(t, a.Histograms, 1)
	assert.True(t, a.Histograms[0].DiscrEff)
	assert.Len(t, a.Categories, 2)
}

func TestReadAnalysis_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no histograms", "categories: [{name: b, cut: \"1\"}]"},
		{"no categories", "histograms: [{name: h, bins: 10, min: 0, max: 1, var: TCHE}]"},
		{"bad bins", "histograms: [{name: h, bins: 1, min: 0, max: 1, var: TCHE}]\ncategories: [{name: b, cut: \"1\"}]"},
		{"empty range", "histograms: [{name: h, bins: 10, min: 1, max: 1, var: TCHE}]\ncategories: [{name: b, cut: \"1\"}]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadAnalysis(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}
