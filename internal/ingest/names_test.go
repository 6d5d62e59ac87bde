package ingest

import (
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeDirectory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data/raw", "data/raw"},
		{"data//raw///2024", "data/raw/2024"},
		{`win\path\here`, "win/path/here"},
		{"/leading/and/trailing/", "leading/and/trailing"},
		{"weird:name*here", "weird.name.here"},
		{"a..b...c", "a.b.c"},
		{"-- ..", ""},
		{"résumé", "r.sum"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeDirectory(tt.in))
		})
	}
}

func TestSplitEntryName(t *testing.T) {
	tests := []struct {
		name      string
		wantShort string
		wantDir   string
		wantOK    bool
	}{
		{"a.csv", "a.csv", "", true},
		{"data/raw/a.csv", "a.csv", "data/raw", true},
		{`data\a.csv`, "a.csv", "data", true},
		{"__MACOSX/data/._a.csv", "", "", false},
		{"data/.DS_Store", "", "", false},
		{"data/", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			short, dir, ok := splitEntryName(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantShort, short)
			assert.Equal(t, tt.wantDir, dir)
		})
	}
}

func TestNameDecoder(t *testing.T) {
	utf8Name := &zip.File{FileHeader: zip.FileHeader{Name: "données.csv"}}
	latin1Name := &zip.File{FileHeader: zip.FileHeader{Name: "donn\xe9es.csv", NonUTF8: true}}

	t.Run("utf8 passes without charset", func(t *testing.T) {
		d, err := newNameDecoder("")
		require.NoError(t, err)

		name, err := d.decode(utf8Name)
		require.NoError(t, err)
		assert.Equal(t, "données.csv", name)
	})

	t.Run("invalid bytes rejected without charset", func(t *testing.T) {
		d, err := newNameDecoder("")
		require.NoError(t, err)

		_, err = d.decode(latin1Name)
		assert.ErrorIs(t, err, ErrUndecodableName)
	})

	t.Run("charset decodes legacy names", func(t *testing.T) {
		d, err := newNameDecoder("windows-1252")
		require.NoError(t, err)

		name, err := d.decode(latin1Name)
		require.NoError(t, err)
		assert.Equal(t, "données.csv", name)
	})

	t.Run("unknown charset", func(t *testing.T) {
		_, err := newNameDecoder("no-such-charset")
		assert.Error(t, err)
	})
}
