package ingest

import (
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"
)

// Content types with dedicated handling.
const (
	UndeterminedType = "application/octet-stream"
	TypeGzip         = "application/gzip"
	TypeZip          = "application/zip"
	TypeShapefile    = "application/zipped-shapefile"
	TypeBagIt        = "application/x-bagit+zip"
)

// SniffSampleSize is how many leading bytes are handed to the Sniffer.
const SniffSampleSize = 3072

// Source records where a ClassifiedType came from.
type Source string

const (
	SourceSupplied  Source = "supplied"
	SourceSniffed   Source = "sniffed"
	SourceExtension Source = "extension"
	SourceDefault   Source = "default"
)

// ClassifiedType is a resolved content type plus its provenance. Type is
// never empty.
type ClassifiedType struct {
	Type   string `json:"type"`
	Source Source `json:"source"`
}

// Sniffer inspects a content sample and returns a MIME type, or "" if it
// cannot tell.
type Sniffer interface {
	Sniff(sample []byte) string
}

// SnifferFunc adapts a function to Sniffer.
type SnifferFunc func(sample []byte) string

func (f SnifferFunc) Sniff(sample []byte) string { return f(sample) }

// MagicSniffer detects types from magic numbers using mimetype.
type MagicSniffer struct{}

func (MagicSniffer) Sniff(sample []byte) string {
	if len(sample) == 0 {
		return ""
	}
	return baseType(mimetype.Detect(sample).String())
}

// extensionTypes maps lower-case extensions to the type we store them as.
// Sniffers report most of these as text/plain or octet-stream.
var extensionTypes = map[string]string{
	"csv":   "text/csv",
	"tsv":   "text/tab-separated-values",
	"tab":   "text/tab-separated-values",
	"txt":   "text/plain",
	"md":    "text/markdown",
	"json":  "application/json",
	"xml":   "text/xml",
	"sav":   "application/x-spss-sav",
	"por":   "application/x-spss-por",
	"dta":   "application/x-stata",
	"rdata": "application/x-rlang-transport",
	"fits":  "application/fits",
	"nc":    "application/netcdf",
	"pdf":   "application/pdf",
	"xlsx":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"zip":   TypeZip,
	"gz":    TypeGzip,
	"shp":   "application/x-esri-shape",
	"shx":   "application/x-esri-shape-index",
	"dbf":   "application/x-dbf",
	"prj":   "text/plain",
}

// Classifier resolves content types with the tiers sniff, supplied type,
// extension, default.
type Classifier struct {
	sniffer Sniffer
}

// NewClassifier returns a Classifier using s, or MagicSniffer when s is nil.
func NewClassifier(s Sniffer) *Classifier {
	if s == nil {
		s = MagicSniffer{}
	}
	return &Classifier{sniffer: s}
}

// Classify resolves the type of sample, which may be a prefix of the file.
// Zip archives are reported as TypeZip; ClassifyFile looks inside them.
func (c *Classifier) Classify(sample []byte, fileName, supplied string) ClassifiedType {
	sniffed := c.sniff(sample, fileName)
	supplied = baseType(supplied)

	if UseRecognizedType(supplied, sniffed) {
		return ClassifiedType{Type: sniffed, Source: SourceSniffed}
	}
	if !isUndetermined(supplied) {
		return ClassifiedType{Type: supplied, Source: SourceSupplied}
	}
	if ext := TypeByExtension(fileName); ext != "" {
		return ClassifiedType{Type: ext, Source: SourceExtension}
	}
	return ClassifiedType{Type: UndeterminedType, Source: SourceDefault}
}

// ClassifyFile classifies the file at p. Zip archives are opened to tell
// plain zips from shapefile bundles and BagIt packages.
func (c *Classifier) ClassifyFile(p, fileName, supplied string) (ClassifiedType, error) {
	f, err := os.Open(p)
	if err != nil {
		return ClassifiedType{}, fmt.Errorf("open for classification: %w", err)
	}
	sample := make([]byte, SniffSampleSize)
	n, err := io.ReadFull(f, sample)
	f.Close()
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return ClassifiedType{}, fmt.Errorf("read sample: %w", err)
	}

	ct := c.Classify(sample[:n], fileName, supplied)
	if ct.Type == TypeZip {
		if inner := zipContentType(p); inner != "" {
			ct.Type = inner
		}
	}
	return ct, nil
}

// ClassifyReference resolves the type of a file we have no bytes for: the
// supplied type, replaced by the extension type where the extension is
// more specific.
func (c *Classifier) ClassifyReference(fileName, supplied string) ClassifiedType {
	supplied = baseType(supplied)
	ext := TypeByExtension(fileName)
	if ext != "" && UseRecognizedType(supplied, ext) {
		return ClassifiedType{Type: ext, Source: SourceExtension}
	}
	if !isUndetermined(supplied) {
		return ClassifiedType{Type: supplied, Source: SourceSupplied}
	}
	return ClassifiedType{Type: UndeterminedType, Source: SourceDefault}
}

// sniff runs the Sniffer and refines generic text results by extension.
func (c *Classifier) sniff(sample []byte, fileName string) string {
	sniffed := baseType(c.sniffer.Sniff(sample))
	if sniffed == "text/plain" {
		if ext := TypeByExtension(fileName); isTextual(ext) {
			return ext
		}
	}
	return sniffed
}

// UseRecognizedType reports whether a recognized type should replace the
// supplied one. A recognized type wins unless it is itself undetermined, or
// it is plain text and the caller supplied a more specific text type.
func UseRecognizedType(supplied, recognized string) bool {
	if isUndetermined(recognized) {
		return false
	}
	if recognized == "text/plain" && supplied != "text/plain" && isTextual(supplied) {
		return false
	}
	return true
}

// TypeByExtension maps the file name's extension, or returns "".
func TypeByExtension(fileName string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(fileName, "\\", "/")))
	if ext == "" {
		return ""
	}
	return extensionTypes[ext[1:]]
}

func isUndetermined(t string) bool {
	switch strings.ToLower(t) {
	case "", UndeterminedType, "application/unknown", "binary/octet-stream", "application/x-unknown":
		return true
	}
	return false
}

func isTextual(t string) bool {
	return strings.HasPrefix(t, "text/") || t == "application/json"
}

// baseType strips MIME parameters and normalizes case.
func baseType(t string) string {
	t, _, _ = strings.Cut(t, ";")
	return strings.ToLower(strings.TrimSpace(t))
}

// zipContentType looks at a zip's entry names and reports TypeBagIt or
// TypeShapefile, or "" for an ordinary archive.
func zipContentType(p string) string {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return ""
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			names = append(names, f.Name)
		}
	}

	if isBagIt(names) {
		return TypeBagIt
	}
	if hasCompleteShapefile(names) {
		return TypeShapefile
	}
	return ""
}

// isBagIt reports whether names contain a bag declaration together with a
// payload manifest, at the archive root or inside a single top-level folder.
func isBagIt(names []string) bool {
	declared := make(map[string]bool)
	manifested := make(map[string]bool)
	for _, n := range names {
		n = strings.ReplaceAll(n, "\\", "/")
		dir, base := path.Split(n)
		if dir != "" && strings.Count(dir, "/") != 1 {
			continue
		}
		switch {
		case base == "bagit.txt":
			declared[dir] = true
		case payloadManifest.MatchString(base):
			manifested[dir] = true
		}
	}
	for dir := range declared {
		if manifested[dir] {
			return true
		}
	}
	return false
}

var payloadManifest = regexp.MustCompile(`^manifest-(md5|sha1|sha256|sha512)\.txt$`)
