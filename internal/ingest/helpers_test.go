package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name string
	body string
}

// buildZip writes entries into an in-memory zip archive. Names ending in
// "/" become directory entries.
func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate})
		require.NoError(t, err)
		if !strings.HasSuffix(e.name, "/") {
			_, err = w.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildGzip(t *testing.T, body string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// csvBody returns n bytes of comma separated text.
func csvBody(n int) string {
	row := "id,name,value\n"
	s := strings.Repeat(row, n/len(row)+1)
	return s[:n]
}

type testEnv struct {
	scratch  string
	storage  string
	pipeline *Pipeline
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()

	root := t.TempDir()
	scratch, err := NewScratch(filepath.Join(root, "scratch"))
	require.NoError(t, err)

	opts := Options{
		Scratch:    scratch,
		StorageDir: filepath.Join(root, "storage"),
	}
	for _, m := range mutate {
		m(&opts)
	}

	p, err := New(opts)
	require.NoError(t, err)

	return &testEnv{
		scratch:  scratch.Dir(),
		storage:  opts.StorageDir,
		pipeline: p,
	}
}

func (e *testEnv) ingest(t *testing.T, name string, body []byte, lim Limits) (*Result, error) {
	t.Helper()
	return e.pipeline.Ingest(t.Context(), UploadRequest{
		Body:     bytes.NewReader(body),
		FileName: name,
	}, lim)
}

// requireEmpty asserts the directory holds no entries.
func requireEmpty(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Empty(t, names, "leftover files in %s", dir)
}

// storedFiles returns the names of everything under the storage dir.
func storedFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}
