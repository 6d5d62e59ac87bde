// Package bagit implements enough of the BagIt packaging format to ingest
// zipped bags. A bag is unpacked into its payload files (everything under
// "data/"), each verified against the bag's payload manifests.
//
// Fetch files and holey bags are not supported. Tag manifests and
// bag-info.txt are read only as far as needed to locate the payload.
//
// The format is defined by RFC 8493.
package bagit

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/JonMunkholm/ingest/internal/ingest"
	"github.com/klauspost/compress/zip"
)

const (
	// DeclarationFile names the bag declaration.
	DeclarationFile = "bagit.txt"

	// PayloadDir is the directory holding payload files.
	PayloadDir = "data/"
)

var (
	ErrNoDeclaration = errors.New("bagit: bagit.txt not found")
	ErrNoManifest    = errors.New("bagit: no payload manifest")
	ErrNotInManifest = errors.New("bagit: payload file not listed in manifest")
	ErrMissingFile   = errors.New("bagit: manifest lists a missing payload file")
	ErrChecksum      = errors.New("bagit: checksum mismatch")
)

// manifestAlgorithms maps manifest-<alg>.txt names to checksum types,
// strongest first.
var manifestAlgorithms = []struct {
	name string
	typ  ingest.ChecksumType
}{
	{"sha512", ingest.SHA512},
	{"sha256", ingest.SHA256},
	{"sha1", ingest.SHA1},
	{"md5", ingest.MD5},
}

// Declaration is the content of bagit.txt.
type Declaration struct {
	Version  string
	Encoding string
}

// Checksum contains all the checksums we know about for a given file.
// Some entries may be empty. At least one entry should be present.
type Checksum map[ingest.ChecksumType]string

// strongest returns the best algorithm and digest available.
func (c Checksum) strongest() (ingest.ChecksumType, string) {
	for _, a := range manifestAlgorithms {
		if v, ok := c[a.typ]; ok {
			return a.typ, v
		}
	}
	return "", ""
}

// Bag is the parsed control information of a zipped bag.
type Bag struct {
	// dirname is the folder the bag unserializes into, with a trailing
	// slash, or "" when the bag sits at the archive root.
	dirname string

	Declaration Declaration

	// manifest maps payload paths ("data/...") to their checksums.
	manifest map[string]Checksum
}

// Manifest returns the expected checksums of a payload path.
func (b *Bag) Manifest(p string) (Checksum, bool) {
	c, ok := b.manifest[p]
	return c, ok
}

// Len returns the number of payload files listed in the manifests.
func (b *Bag) Len() int {
	return len(b.manifest)
}

// Read parses the control files of a zipped bag.
func Read(zr *zip.Reader) (*Bag, error) {
	files := make(map[string]*zip.File, len(zr.File))
	var dirname string
	found := false
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		files[name] = f
		dir, base := path.Split(name)
		if base == DeclarationFile && strings.Count(dir, "/") <= 1 && !found {
			dirname = dir
			found = true
		}
	}
	if !found {
		return nil, ErrNoDeclaration
	}

	bag := &Bag{dirname: dirname, manifest: make(map[string]Checksum)}

	decl, err := readTagFile(files[dirname+DeclarationFile])
	if err != nil {
		return nil, fmt.Errorf("bagit: read declaration: %w", err)
	}
	bag.Declaration = Declaration{
		Version:  decl["BagIt-Version"],
		Encoding: decl["Tag-File-Character-Encoding"],
	}
	if bag.Declaration.Version == "" {
		return nil, fmt.Errorf("bagit: declaration has no BagIt-Version")
	}

	for _, alg := range manifestAlgorithms {
		f, ok := files[dirname+"manifest-"+alg.name+".txt"]
		if !ok {
			continue
		}
		if err := bag.readManifest(f, alg.typ); err != nil {
			return nil, err
		}
	}
	if len(bag.manifest) == 0 {
		return nil, ErrNoManifest
	}
	return bag, nil
}

// readManifest adds the lines "<checksum> <path>" of f to the manifest.
func (b *Bag) readManifest(f *zip.File, typ ingest.ChecksumType) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("bagit: open %s: %w", f.Name, err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sum, p, ok := strings.Cut(line, " ")
		if !ok {
			return fmt.Errorf("bagit: malformed manifest line %q in %s", line, f.Name)
		}
		p = strings.TrimLeft(p, " \t")
		p = strings.TrimPrefix(path.Clean("/"+p), "/")
		if b.manifest[p] == nil {
			b.manifest[p] = make(Checksum)
		}
		b.manifest[p][typ] = strings.ToLower(sum)
	}
	return scanner.Err()
}

// readTagFile parses "Label: value" lines.
func readTagFile(f *zip.File) (map[string]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	tags := make(map[string]string)
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		label, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		tags[strings.TrimSpace(label)] = strings.TrimSpace(value)
	}
	return tags, scanner.Err()
}

// Handler unpacks zipped bags for the ingest pipeline.
type Handler struct {
	logger *slog.Logger
}

// NewHandler returns a Handler logging to logger, or slog.Default().
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// HandlePackage emits every payload file of the bag in pkg, verifying each
// against the strongest checksum its manifest provides.
func (h *Handler) HandlePackage(pkg *ingest.StagedFile, fileName string, out *ingest.Emitter) (*ingest.Result, error) {
	zr, err := zip.OpenReader(pkg.Path())
	if err != nil {
		return nil, fmt.Errorf("bagit: open %s: %w", fileName, err)
	}
	defer zr.Close()

	bag, err := Read(&zr.Reader)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("bag read",
		"file_name", fileName,
		"version", bag.Declaration.Version,
		"payload_files", bag.Len(),
	)

	seen := make(map[string]bool, bag.Len())
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		rel := strings.TrimPrefix(strings.ReplaceAll(zf.Name, "\\", "/"), bag.dirname)
		if !strings.HasPrefix(rel, PayloadDir) {
			continue
		}

		sum, ok := bag.Manifest(rel)
		if !ok {
			if base := path.Base(rel); strings.HasPrefix(base, "._") || base == ".DS_Store" {
				continue
			}
			return nil, fmt.Errorf("%w: %s", ErrNotInManifest, rel)
		}
		if err := h.emitPayload(out, zf, rel, sum); err != nil {
			return nil, err
		}
		seen[rel] = true
	}

	for p := range bag.manifest {
		if !seen[p] {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, p)
		}
	}

	return &ingest.Result{Outcome: ingest.OutcomeSuccess, FileName: fileName}, nil
}

// emitPayload streams one payload file through out while hashing it.
func (h *Handler) emitPayload(out *ingest.Emitter, zf *zip.File, rel string, sum Checksum) error {
	typ, want := sum.strongest()
	hash, err := typ.NewHash()
	if err != nil {
		return err
	}

	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("bagit: open %s: %w", rel, err)
	}
	defer rc.Close()

	dir, short := path.Split(strings.TrimPrefix(rel, PayloadDir))
	if _, err := out.Emit(io.TeeReader(rc, hash), short, ingest.SanitizeDirectory(dir)); err != nil {
		return fmt.Errorf("bagit: %s: %w", rel, err)
	}

	if got := hex.EncodeToString(hash.Sum(nil)); got != want {
		return fmt.Errorf("%w: %s %s is %s, manifest says %s", ErrChecksum, rel, typ, got, want)
	}
	return nil
}
