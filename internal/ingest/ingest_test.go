package ingest

import (
	"bytes"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func fileNames(files []UnpackedFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.FileName)
	}
	sort.Strings(out)
	return out
}

func TestIngest_PlainFile(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(csvBody(321))

	res, err := env.ingest(t, "table.csv", body, Limits{})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.Len(t, res.Files, 1)

	f := res.Files[0]
	assert.Equal(t, MethodSingle, res.Method)
	assert.Equal(t, "table.csv", f.FileName)
	assert.EqualValues(t, len(body), f.Size)
	assert.Equal(t, "text/csv", f.ContentType)
	assert.Equal(t, Checksum{Type: MD5, Value: md5Hex(body)}, f.Checksum)
	assert.NotEmpty(t, f.StorageIdentifier)
	assert.Empty(t, res.Warning)
	assert.False(t, f.IngestProblem)

	stored, err := os.ReadFile(f.Location)
	require.NoError(t, err)
	assert.Equal(t, body, stored)

	requireEmpty(t, env.scratch)
	require.NoError(t, res.Release())
	assert.Empty(t, storedFiles(t, env.storage))
}

func TestIngest_SuppliedChecksumKept(t *testing.T) {
	env := newTestEnv(t)
	supplied := &Checksum{Type: SHA1, Value: "precomputed"}

	res, err := env.pipeline.Ingest(t.Context(), UploadRequest{
		Body:     strings.NewReader("payload"),
		FileName: "p.txt",
		Checksum: supplied,
	}, Limits{})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, *supplied, res.Files[0].Checksum)
}

func TestIngest_Fixity(t *testing.T) {
	env := newTestEnv(t)
	body := []byte("fixity check")

	res, err := env.ingest(t, "f.txt", body, Limits{Fixity: SHA256})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	sum := sha256.Sum256(body)
	assert.Equal(t, Checksum{Type: SHA256, Value: hex.EncodeToString(sum[:])}, res.Files[0].Checksum)

	_, err = env.ingest(t, "f.txt", body, Limits{Fixity: "CRC32"})
	assert.True(t, IsKind(err, KindInvalidRequest))
}

func TestIngest_Zip(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t,
		zipEntry{"a.csv", csvBody(100)},
		zipEntry{"b.txt", strings.Repeat("b", 50)},
	)

	res, err := env.ingest(t, "upload.zip", archive, Limits{})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	defer res.Release()

	assert.Equal(t, MethodZip, res.Method)
	assert.Empty(t, res.Warning)
	require.Len(t, res.Files, 2)

	sizes := map[string]int64{}
	for _, f := range res.Files {
		sizes[f.FileName] = f.Size
		assert.False(t, f.IngestProblem)
	}
	assert.Equal(t, map[string]int64{"a.csv": 100, "b.txt": 50}, sizes)

	requireEmpty(t, env.scratch)
	assert.Len(t, storedFiles(t, env.storage), 2)
}

func TestIngest_ZipDirectoriesAndSidecars(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t,
		zipEntry{"study/", ""},
		zipEntry{"study/raw/a.csv", csvBody(40)},
		zipEntry{"study/raw/._a.csv", "resource fork"},
		zipEntry{"study/.DS_Store", "finder"},
		zipEntry{"__MACOSX/study/._b.txt", "resource fork"},
		zipEntry{"study/b.txt", "bee"},
	)

	res, err := env.ingest(t, "study.zip", archive, Limits{})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	defer res.Release()

	assert.Equal(t, []string{"a.csv", "b.txt"}, fileNames(res.Files))
	for _, f := range res.Files {
		switch f.FileName {
		case "a.csv":
			assert.Equal(t, "study/raw", f.DirectoryLabel)
		case "b.txt":
			assert.Equal(t, "study", f.DirectoryLabel)
		}
	}
}

func TestIngest_ZipTooManyEntries(t *testing.T) {
	env := newTestEnv(t)

	var entries []zipEntry
	for i := range 5 {
		entries = append(entries, zipEntry{name: string(rune('a'+i)) + ".txt", body: "entry"})
	}
	archive := buildZip(t, entries...)

	res, err := env.ingest(t, "many.zip", archive, Limits{MaxZipEntries: 3})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	defer res.Release()

	assert.Contains(t, res.Warning, "too many files")
	assert.Equal(t, MsgUnzipCount, res.FallbackReason)
	assert.Equal(t, MethodSingle, res.Method)
	require.Len(t, res.Files, 1)

	f := res.Files[0]
	assert.Equal(t, "many.zip", f.FileName)
	assert.EqualValues(t, len(archive), f.Size)
	assert.Equal(t, md5Hex(archive), f.Checksum.Value)
	assert.Equal(t, TypeZip, f.ContentType)
	assert.True(t, f.IngestProblem)

	requireEmpty(t, env.scratch)
	assert.Len(t, storedFiles(t, env.storage), 1, "partial unzip output must be discarded")
}

func TestIngest_ZipAtEntryLimit(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t,
		zipEntry{"a.txt", "a"},
		zipEntry{"b.txt", "b"},
		zipEntry{"c.txt", "c"},
	)

	res, err := env.ingest(t, "three.zip", archive, Limits{MaxZipEntries: 3})
	require.NoError(t, err)
	defer res.Release()

	assert.Equal(t, MethodZip, res.Method)
	assert.Len(t, res.Files, 3)
}

func TestIngest_ZipUndecodableName(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t,
		zipEntry{"good.txt", "fine"},
		zipEntry{"bad\xff.txt", "not fine"},
	)

	res, err := env.ingest(t, "names.zip", archive, Limits{})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	defer res.Release()

	require.Len(t, res.Files, 1)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, MsgUnzipEncoding, res.FallbackReason)
	assert.EqualValues(t, len(archive), res.Files[0].Size)

	requireEmpty(t, env.scratch)
	assert.Len(t, storedFiles(t, env.storage), 1)
}

func TestIngest_ZipNameCharset(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.ZipNameCharset = "windows-1252" })
	archive := buildZip(t, zipEntry{"donn\xe9es.txt", "bonjour"})

	res, err := env.ingest(t, "fr.zip", archive, Limits{})
	require.NoError(t, err)
	defer res.Release()

	assert.Equal(t, MethodZip, res.Method)
	assert.Equal(t, []string{"données.txt"}, fileNames(res.Files))
}

func TestIngest_ZipEntryRejections(t *testing.T) {
	tests := []struct {
		name       string
		limits     Limits
		wantReason string
	}{
		{"entry over size limit", Limits{MaxFileSize: MaxBytes(500)}, MsgUnzipSize},
		{"entries over quota", Limits{Quota: MaxBytes(1000)}, MsgUnzipQuota},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			archive := buildZip(t,
				zipEntry{"a.csv", csvBody(600)},
				zipEntry{"b.csv", csvBody(600)},
			)
			require.Less(t, len(archive), 500, "test archive must compress well")

			res, err := env.ingest(t, "big.zip", archive, tt.limits)
			require.NoError(t, err)
			require.True(t, res.Succeeded())
			defer res.Release()

			assert.Equal(t, tt.wantReason, res.FallbackReason)
			assert.NotEmpty(t, res.Warning)
			require.Len(t, res.Files, 1)
			assert.EqualValues(t, len(archive), res.Files[0].Size)

			requireEmpty(t, env.scratch)
			assert.Len(t, storedFiles(t, env.storage), 1)
		})
	}
}

func TestIngest_ZipAggregateWithinQuota(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t,
		zipEntry{"a.txt", strings.Repeat("a", 300)},
		zipEntry{"b.txt", strings.Repeat("b", 300)},
		zipEntry{"c.txt", strings.Repeat("c", 300)},
	)

	res, err := env.ingest(t, "q.zip", archive, Limits{Quota: MaxBytes(900)})
	require.NoError(t, err)
	defer res.Release()

	assert.Equal(t, MethodZip, res.Method)
	assert.EqualValues(t, 900, res.TotalSize())
}

func TestIngest_EmptyZipStoredAsIs(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t, zipEntry{"only-a-dir/", ""})

	res, err := env.ingest(t, "empty.zip", archive, Limits{})
	require.NoError(t, err)
	defer res.Release()

	assert.Equal(t, MethodSingle, res.Method)
	assert.Empty(t, res.Warning)
	require.Len(t, res.Files, 1)
}

func TestIngest_Gzip(t *testing.T) {
	env := newTestEnv(t)
	body := csvBody(200)

	res, err := env.ingest(t, "data.csv.gz", buildGzip(t, body), Limits{})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	defer res.Release()

	assert.Equal(t, MethodGzip, res.Method)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "data.csv", res.Files[0].FileName)
	assert.EqualValues(t, 200, res.Files[0].Size)
	assert.Equal(t, "text/csv", res.Files[0].ContentType)

	requireEmpty(t, env.scratch)
}

func TestIngest_GzipFallbacks(t *testing.T) {
	t.Run("corrupt stream", func(t *testing.T) {
		env := newTestEnv(t)
		data := append([]byte{0x1f, 0x8b, 0x08, 0, 0, 0, 0, 0, 0, 0xff}, []byte("definitely not deflate")...)

		res, err := env.ingest(t, "broken.gz", data, Limits{})
		require.NoError(t, err)
		defer res.Release()

		assert.Equal(t, MsgGunzipFailed, res.FallbackReason)
		require.Len(t, res.Files, 1)
		assert.EqualValues(t, len(data), res.Files[0].Size)
		requireEmpty(t, env.scratch)
	})

	t.Run("decompressed over size limit", func(t *testing.T) {
		env := newTestEnv(t)
		data := buildGzip(t, strings.Repeat("z", 10000))

		res, err := env.ingest(t, "bomb.gz", data, Limits{MaxFileSize: MaxBytes(1000)})
		require.NoError(t, err)
		defer res.Release()

		assert.Equal(t, MsgGunzipSize, res.FallbackReason)
		assert.Equal(t, "bomb.gz", res.Files[0].FileName)
		requireEmpty(t, env.scratch)
		assert.Len(t, storedFiles(t, env.storage), 1)
	})
}

func TestIngest_Shapefile(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t,
		zipEntry{"gis/maps/roads.shp", "geometry"},
		zipEntry{"gis/maps/roads.shx", "index"},
		zipEntry{"gis/maps/roads.dbf", "attributes"},
		zipEntry{"gis/maps/roads.prj", "projection"},
	)

	res, err := env.ingest(t, "roads.zip", archive, Limits{})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	defer res.Release()

	assert.Equal(t, MethodShapefile, res.Method)
	require.Len(t, res.Files, 1)

	f := res.Files[0]
	assert.Equal(t, "roads.zip", f.FileName)
	assert.Equal(t, "gis/maps", f.DirectoryLabel)
	assert.Equal(t, TypeShapefile, f.ContentType)

	zr, err := zip.OpenReader(f.Location)
	require.NoError(t, err)
	defer zr.Close()

	var members []string
	for _, zf := range zr.File {
		members = append(members, zf.Name)
	}
	assert.Equal(t, []string{"roads.dbf", "roads.prj", "roads.shp", "roads.shx"}, members)

	requireEmpty(t, env.scratch)
}

func TestIngest_ShapefileWithLooseFiles(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t,
		zipEntry{"roads.shp", "geometry"},
		zipEntry{"roads.shx", "index"},
		zipEntry{"roads.dbf", "attributes"},
		zipEntry{"roads.prj", "projection"},
		zipEntry{"roads.cpg", "UTF-8"},
		zipEntry{"docs/README.txt", "about the roads"},
	)

	res, err := env.ingest(t, "bundle.zip", archive, Limits{})
	require.NoError(t, err)
	defer res.Release()

	assert.Equal(t, MethodShapefile, res.Method)
	assert.Equal(t, []string{"README.txt", "roads.zip"}, fileNames(res.Files))
}

func TestIngest_ShapefileIncomplete(t *testing.T) {
	env := newTestEnv(t)
	archive := buildZip(t,
		zipEntry{"roads.shp", "geometry"},
		zipEntry{"roads.shx", "index"},
		zipEntry{"roads.dbf", "attributes"},
		zipEntry{"roads.prj", "projection"},
		zipEntry{"rivers.shp", "geometry"},
		zipEntry{"rivers.shx", "index"},
	)

	res, err := env.ingest(t, "water.zip", archive, Limits{})
	require.NoError(t, err)
	require.False(t, res.Succeeded())

	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Equal(t, "water.zip", res.FileName)
	assert.Equal(t, TypeShapefile, res.ContentType)
	assert.Contains(t, res.Reason, "rivers")
	assert.Empty(t, res.Files)

	requireEmpty(t, env.scratch)
	assert.Empty(t, storedFiles(t, env.storage))
}

func TestIngest_ShapefileComponentRefused(t *testing.T) {
	archive := buildZip(t,
		zipEntry{"roads.shp", "geometry"},
		zipEntry{"roads.shx", "index"},
		zipEntry{"roads.dbf", "attributes"},
		zipEntry{"roads.prj", "projection"},
		zipEntry{"notes.txt", strings.Repeat("x", 5000)},
	)
	archiveSize := int64(len(archive))

	tests := []struct {
		name   string
		limits Limits
		want   string
	}{
		{
			name:   "over size limit",
			limits: Limits{MaxFileSize: MaxBytes(archiveSize)},
			want:   "larger than",
		},
		{
			name:   "over quota",
			limits: Limits{Quota: MaxBytes(archiveSize)},
			want:   "storage quota",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			res, err := env.ingest(t, "roads.zip", archive, tt.limits)
			require.NoError(t, err)

			assert.Equal(t, OutcomeError, res.Outcome)
			assert.Equal(t, TypeShapefile, res.ContentType)
			assert.Contains(t, res.Reason, tt.want)
			assert.Empty(t, res.Warning)
			assert.Empty(t, res.Files)

			requireEmpty(t, env.scratch)
			assert.Empty(t, storedFiles(t, env.storage))
		})
	}
}

func TestIngest_RawUploadOverSizeLimit(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.ingest(t, "huge.zip", buildZip(t, zipEntry{"a.txt", csvBody(4000)}),
		Limits{MaxFileSize: MaxBytes(64)})
	require.Error(t, err)
	assert.Nil(t, res)

	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, KindFileTooLarge, ee.Kind)
	assert.Contains(t, ee.Error(), "size limit")

	requireEmpty(t, env.scratch)
	assert.Empty(t, storedFiles(t, env.storage))
}

func TestIngest_QuotaRejectedSingleFile(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.ingest(t, "big.csv", []byte(csvBody(100)), Limits{Quota: MaxBytes(50)})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Equal(t, "big.csv", res.FileName)
	assert.Equal(t, "text/csv", res.ContentType)
	assert.Contains(t, res.Reason, "quota")
	assert.Empty(t, res.Files)

	requireEmpty(t, env.scratch)
	assert.Empty(t, storedFiles(t, env.storage))
}

func TestIngest_ZeroByteFile(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.ingest(t, "empty.txt", nil, Limits{MaxFileSize: MaxBytes(0), Quota: MaxBytes(0)})
	require.NoError(t, err)
	defer res.Release()

	require.True(t, res.Succeeded())
	require.Len(t, res.Files, 1)
	assert.Zero(t, res.Files[0].Size)
}

func TestIngest_Reference(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	t.Run("registered without staging", func(t *testing.T) {
		res, err := env.pipeline.Ingest(ctx, UploadRequest{
			StorageIdentifier: "s3://bucket/abc123",
			DeclaredSize:      1234,
			FileName:          "table.csv",
			Checksum:          &Checksum{Type: MD5, Value: "d41d8cd98f00b204e9800998ecf8427e"},
		}, Limits{})
		require.NoError(t, err)
		require.True(t, res.Succeeded())

		assert.Equal(t, MethodReference, res.Method)
		require.Len(t, res.Files, 1)
		f := res.Files[0]
		assert.Equal(t, "s3://bucket/abc123", f.StorageIdentifier)
		assert.EqualValues(t, 1234, f.Size)
		assert.Equal(t, "text/csv", f.ContentType)
		assert.Empty(t, f.Location)
		assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", f.Checksum.Value)
		requireEmpty(t, env.scratch)
	})

	t.Run("over size limit is fatal", func(t *testing.T) {
		_, err := env.pipeline.Ingest(ctx, UploadRequest{
			StorageIdentifier: "s3://bucket/big",
			DeclaredSize:      5000,
			FileName:          "big.bin",
		}, Limits{MaxFileSize: MaxBytes(100)})
		assert.True(t, IsKind(err, KindFileTooLarge))
	})

	t.Run("over quota is an error result", func(t *testing.T) {
		res, err := env.pipeline.Ingest(ctx, UploadRequest{
			StorageIdentifier: "s3://bucket/big",
			DeclaredSize:      5000,
			FileName:          "big.bin",
		}, Limits{Quota: MaxBytes(100)})
		require.NoError(t, err)
		assert.Equal(t, OutcomeError, res.Outcome)
	})
}

func TestIngest_InvalidRequests(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.pipeline.Ingest(t.Context(), UploadRequest{
		Body:              strings.NewReader("x"),
		StorageIdentifier: "s3://bucket/x",
		FileName:          "x",
	}, Limits{})
	assert.True(t, IsKind(err, KindInvalidRequest))

	_, err = env.pipeline.Ingest(t.Context(), UploadRequest{FileName: "x"}, Limits{})
	assert.True(t, IsKind(err, KindInvalidRequest))
}

func TestIngest_ScratchUnconfigured(t *testing.T) {
	p, err := New(Options{})
	require.NoError(t, err)

	_, err = p.Ingest(t.Context(), UploadRequest{Body: strings.NewReader("x"), FileName: "x.txt"}, Limits{})
	assert.True(t, IsKind(err, KindScratchUnconfigured))
	assert.ErrorIs(t, err, ErrScratchUnconfigured)
}

// stubHandler emits fixed files, then returns err.
type stubHandler struct {
	emit []zipEntry
	err  error
}

func (h *stubHandler) HandlePackage(pkg *StagedFile, fileName string, out *Emitter) (*Result, error) {
	for _, e := range h.emit {
		if _, err := out.Emit(strings.NewReader(e.body), e.name, "payload"); err != nil {
			return nil, err
		}
	}
	if h.err != nil {
		return nil, h.err
	}
	return &Result{Outcome: OutcomeSuccess}, nil
}

func TestIngest_Package(t *testing.T) {
	bag := buildZip(t,
		zipEntry{"bagit.txt", "BagIt-Version: 0.97\n"},
		zipEntry{"manifest-md5.txt", "2c1743a391305fbf367df8e4f069f9f9  data/a.txt\n"},
		zipEntry{"data/a.txt", "alpha"},
	)

	t.Run("handler output is the result", func(t *testing.T) {
		h := &stubHandler{emit: []zipEntry{{"a.txt", "alpha"}, {"b.txt", "beta"}}}
		env := newTestEnv(t, func(o *Options) { o.PackageHandler = h })

		res, err := env.ingest(t, "bag.zip", bag, Limits{})
		require.NoError(t, err)
		defer res.Release()

		assert.Equal(t, MethodPackage, res.Method)
		assert.Equal(t, TypeBagIt, res.ContentType)
		assert.Equal(t, []string{"a.txt", "b.txt"}, fileNames(res.Files))
		requireEmpty(t, env.scratch)
	})

	t.Run("handler failure is fatal and leaves nothing", func(t *testing.T) {
		h := &stubHandler{emit: []zipEntry{{"a.txt", "alpha"}}, err: errors.New("manifest mismatch")}
		env := newTestEnv(t, func(o *Options) { o.PackageHandler = h })

		res, err := env.ingest(t, "bag.zip", bag, Limits{})
		assert.Nil(t, res)
		assert.True(t, IsKind(err, KindPackage))

		requireEmpty(t, env.scratch)
		assert.Empty(t, storedFiles(t, env.storage))
	})

	t.Run("empty package is fatal", func(t *testing.T) {
		env := newTestEnv(t, func(o *Options) { o.PackageHandler = &stubHandler{} })

		_, err := env.ingest(t, "bag.zip", bag, Limits{})
		assert.True(t, IsKind(err, KindPackage))
	})

	t.Run("declaration without manifest is a plain zip", func(t *testing.T) {
		notes := buildZip(t,
			zipEntry{"bagit.txt", "notes about bagit"},
			zipEntry{"a.csv", "a,b\n1,2\n"},
		)
		h := &stubHandler{err: errors.New("must not be called")}
		env := newTestEnv(t, func(o *Options) { o.PackageHandler = h })

		res, err := env.ingest(t, "notes.zip", notes, Limits{})
		require.NoError(t, err)
		defer res.Release()

		assert.Equal(t, MethodZip, res.Method)
		assert.ElementsMatch(t, []string{"bagit.txt", "a.csv"}, fileNames(res.Files))
	})

	t.Run("no handler stores the package as is", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.ingest(t, "bag.zip", bag, Limits{})
		require.NoError(t, err)
		defer res.Release()

		assert.Equal(t, MethodSingle, res.Method)
		require.Len(t, res.Files, 1)
		assert.True(t, bytes.Equal(bag, mustRead(t, res.Files[0].Location)))
	})
}

func mustRead(t *testing.T, p string) []byte {
	t.Helper()
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	return b
}

func TestResult_Release(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.ingest(t, "two.zip", buildZip(t,
		zipEntry{"a.txt", "a"},
		zipEntry{"b.txt", "b"},
	), Limits{})
	require.NoError(t, err)
	require.Len(t, storedFiles(t, env.storage), 2)

	require.NoError(t, res.Release())
	assert.Empty(t, storedFiles(t, env.storage))
	assert.NoError(t, res.Release(), "second release is a no-op")
}

func TestStripGzipSuffix(t *testing.T) {
	assert.Equal(t, "data.csv", stripGzipSuffix("data.csv.gz"))
	assert.Equal(t, "DATA", stripGzipSuffix("DATA.GZ"))
	assert.Equal(t, ".gz", stripGzipSuffix(".gz"))
	assert.Equal(t, "plain", stripGzipSuffix("plain"))
}
