package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hepworks/tcount/pkg/data"
)

func TestMain(m *testing.M) {
	initLogging(false)
	os.Exit(m.Run())
}

func TestNewApp(t *testing.T) {
	app := newApp()
	require.NotNil(t, app)

	names := make([]string, 0, len(app.Commands))
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"import", "build", "hist", "roc"}, names)
}

const pipelineEvents = `{"jets":[{"genpt":50,"pt":45,"eta":1.1,"phi":0.2,"flavour":5,"first_track":0,"last_track":3}],"tracks":[{"ipsig":7,"pt":2},{"ipsig":3,"pt":2},{"ipsig":1.5,"pt":2}]}
{"jets":[{"genpt":40,"pt":38,"eta":-0.8,"phi":1.7,"flavour":1,"first_track":0,"last_track":2}],"tracks":[{"ipsig":0.5,"pt":2},{"ipsig":-1,"pt":2}]}
{"jets":[{"genpt":5,"pt":30,"eta":0.1,"phi":3.0,"flavour":5,"first_track":0,"last_track":1}],"tracks":[{"ipsig":9,"pt":2}]}
`

const pipelineAnalysis = `
histograms:
  - name: tche
    title: "TCHE"
    bins: 20
    min: -15
    max: 15
    var: TCHE
    discreff: true
categories:
  - name: b
    cut: "abs(Jet_flavour) == 5 && Jet_genpt >= 8"
  - name: light
    cut: "(abs(Jet_flavour) < 4 || Jet_flavour == 21) && Jet_genpt >= 8"
`

// TestPipeline drives import -> build -> hist -> roc end to end over temp
// stores.
func TestPipeline(t *testing.T) {
	dir := t.TempDir()
	eventsFile := filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(eventsFile, []byte(pipelineEvents), 0600))
	analysisFile := filepath.Join(dir, "analysis.yaml")
	require.NoError(t, os.WriteFile(analysisFile, []byte(pipelineAnalysis), 0600))

	eventsDB := filepath.Join(dir, "events.db")
	jetsDB := filepath.Join(dir, "jets.db")
	histsDB := filepath.Join(dir, "hists.db")
	rocsDB := filepath.Join(dir, "rocs.db")

	app := newApp()

	require.NoError(t, app.Run([]string{"tcount", "import", "-f", eventsFile, "-o", eventsDB}))
	require.NoError(t, app.Run([]string{"tcount", "build", "-i", eventsDB, "-o", jetsDB, "--cut", "Track_pt > 0.5"}))
	require.NoError(t, app.Run([]string{"tcount", "hist", "-i", jetsDB, "-o", histsDB, "--config", analysisFile}))
	require.NoError(t, app.Run([]string{"tcount", "roc", "-i", histsDB, "-o", rocsDB,
		"--signal", "b", "--background", "light", "-d", "tche"}))

	// All three jets had selected tracks: three discriminant rows.
	chain, err := data.OpenDiscrChain(jetsDB)
	require.NoError(t, err)
	defer chain.Close()
	var tches []float64
	require.NoError(t, chain.ForEach(func(env map[string]any) error {
		tches = append(tches, env["TCHE"].(float64))
		return nil
	}))
	require.Len(t, tches, 3)
	assert.Contains(t, tches, 3.0)   // b jet: 2nd highest of 7, 3, 1.5
	assert.Contains(t, tches, -1.0)  // light jet: 2nd highest of 0.5, -1
	assert.Contains(t, tches, -1e10) // single-track pileup jet: sentinel

	// The ROC curve pairs two 19-point efficiency curves.
	rocDB, err := data.OpenExisting(rocsDB)
	require.NoError(t, err)
	defer rocDB.Close()
	xs, ys, err := data.NewHistStore(rocDB).LoadGraph("b_vs_light", "tche")
	require.NoError(t, err)
	assert.Len(t, xs, 19)
	assert.Len(t, ys, 19)
}

func TestBuild_MissingInputFails(t *testing.T) {
	dir := t.TempDir()
	err := newApp().Run([]string{"tcount", "build",
		"-i", filepath.Join(dir, "missing.db"),
		"-o", filepath.Join(dir, "jets.db")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestBuild_MissingModelFailsBeforePass(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "selection.yaml")
	body := `
classifier:
  name: tracksel
  path: ` + filepath.Join(dir, "missing-model.yaml") + `
  cuts: [0.1]
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(body), 0600))

	err := newApp().Run([]string{"tcount", "build",
		"-i", filepath.Join(dir, "events.db"),
		"-o", filepath.Join(dir, "jets.db"),
		"--config", cfgFile})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestROC_MismatchedCurvesFail(t *testing.T) {
	dir := t.TempDir()
	histsDB := filepath.Join(dir, "hists.db")

	require.NoError(t, data.Init(histsDB, data.SchemaHist))
	db, err := data.Open(histsDB)
	require.NoError(t, err)
	defer db.Close()

	store := data.NewHistStore(db)
	require.NoError(t, store.SaveGraph("b", "tche_graph", []float64{0, 1, 2}, []float64{1, 0.5, 0.1}))
	require.NoError(t, store.SaveGraph("light", "tche_graph", []float64{0, 1, 2, 3}, []float64{1, 0.6, 0.2, 0.05}))

	err = newApp().Run([]string{"tcount", "roc", "-i", histsDB,
		"-o", filepath.Join(dir, "rocs.db"),
		"--signal", "b", "--background", "light", "-d", "tche"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same number of points")
}
