package data

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, name, schema string) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, Init(path, schema))
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return path, db
}

func TestInit_CreatesStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	require.NoError(t, Init(path, SchemaEvents))
	_, err := os.Stat(path)
	assert.NoError(t, err)

	// Second Init is a no-op.
	assert.NoError(t, Init(path, SchemaEvents))
}

func TestInit_EmptyPath(t *testing.T) {
	assert.Error(t, Init("", SchemaEvents))
}

func TestInit_UnknownSchema(t *testing.T) {
	assert.Error(t, Init(filepath.Join(t.TempDir(), "x.db"), "nope"))
}

func TestOpenExisting_MissingFile(t *testing.T) {
	_, err := OpenExisting(filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

const testEventsJSONL = `{"jets":[{"genpt":50,"pt":45,"eta":1.2,"phi":0.4,"flavour":5,"first_track":0,"last_track":2}],"tracks":[{"ipsig":3.5,"pt":2},{"ipsig":-1.0,"pt":1.5}]}
{"jets":[{"genpt":7,"pt":6,"eta":-0.5,"phi":2.1,"flavour":1,"first_track":0,"last_track":1}],"tracks":[{"ipsig":0.2,"pt":0.9}]}
`

func writeJSONL(t *testing.T, name, body string, compress bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if !compress {
		require.NoError(t, os.WriteFile(path, []byte(body), 0600))
		return path
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestImportEvents(t *testing.T) {
	_, db := newStore(t, "events.db", SchemaEvents)

	sum, err := ImportEvents(db, writeJSONL(t, "events.jsonl", testEventsJSONL, false))
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Events)
	assert.Equal(t, int64(2), sum.Jets)
	assert.Equal(t, int64(3), sum.Tracks)
}

func TestImportEvents_Gzip(t *testing.T) {
	_, db := newStore(t, "events.db", SchemaEvents)

	sum, err := ImportEvents(db, writeJSONL(t, "events.jsonl.gz", testEventsJSONL, true))
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Events)
}

func TestImportEvents_BadTrackRange(t *testing.T) {
	_, db := newStore(t, "events.db", SchemaEvents)

	body := `{"jets":[{"first_track":0,"last_track":5}],"tracks":[{"ipsig":1}]}` + "\n"
	_, err := ImportEvents(db, writeJSONL(t, "bad.jsonl", body, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "track range")
}

func TestChain_RowAccess(t *testing.T) {
	path, db := newStore(t, "events.db", SchemaEvents)
	_, err := ImportEvents(db, writeJSONL(t, "events.jsonl", testEventsJSONL, false))
	require.NoError(t, err)

	chain, err := OpenChain(path)
	require.NoError(t, err)
	defer chain.Close()

	require.Equal(t, int64(2), chain.Events())

	row, err := chain.Row(0)
	require.NoError(t, err)
	require.Len(t, row.Jets, 1)
	require.Len(t, row.Tracks, 2)
	assert.Equal(t, 50.0, row.Jets[0].GenPt)
	assert.Equal(t, 3.5, row.Tracks[0].IPsig)
	assert.Equal(t, 2, row.Jets[0].NTracks())

	row, err = chain.Row(1)
	require.NoError(t, err)
	assert.Equal(t, 7.0, row.Jets[0].GenPt)

	_, err = chain.Row(2)
	assert.Error(t, err)
}

func TestChain_MergesFilesInOrder(t *testing.T) {
	path1, db1 := newStore(t, "a.db", SchemaEvents)
	_, err := ImportEvents(db1, writeJSONL(t, "a.jsonl", testEventsJSONL, false))
	require.NoError(t, err)

	path2, db2 := newStore(t, "b.db", SchemaEvents)
	body := `{"jets":[{"genpt":99,"pt":90,"flavour":4,"first_track":0,"last_track":1}],"tracks":[{"ipsig":8}]}` + "\n"
	_, err = ImportEvents(db2, writeJSONL(t, "b.jsonl", body, false))
	require.NoError(t, err)

	chain, err := OpenChain(path1, path2)
	require.NoError(t, err)
	defer chain.Close()

	require.Equal(t, int64(3), chain.Events())
	row, err := chain.Row(2)
	require.NoError(t, err)
	assert.Equal(t, 99.0, row.Jets[0].GenPt)
}

func TestChain_MissingFile(t *testing.T) {
	_, err := OpenChain(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestTrackEnv(t *testing.T) {
	row := &Row{Tracks: []Track{{IPsig: 3.5, Pt: 2, Dz: -0.2}}}

	env, ok := row.TrackEnv(0)
	require.True(t, ok)
	assert.Equal(t, 3.5, env["Track_IPsig"])
	assert.Equal(t, 2.0, env["Track_pt"])
	assert.Equal(t, -0.2, env["Track_dz"])

	_, ok = row.TrackEnv(1)
	assert.False(t, ok)
}
