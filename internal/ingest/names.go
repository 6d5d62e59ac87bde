package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrUndecodableName is returned for archive entry names that are neither
// UTF-8 nor valid in the configured charset.
var ErrUndecodableName = errors.New("entry name cannot be decoded")

var (
	separatorRun   = regexp.MustCompile(`[\\/]+`)
	invalidDirChar = regexp.MustCompile(`[^A-Za-z0-9_ ./-]+`)
	dotRun         = regexp.MustCompile(`\.\.+`)
)

// SanitizeDirectory turns an archive path into a directory label: runs of
// separators collapse to "/", characters outside [A-Za-z0-9_ ./-] become
// ".", repeated dots collapse, and leading or trailing "/", "-", "." and
// spaces are trimmed. Returns "" when nothing is left.
func SanitizeDirectory(dir string) string {
	dir = separatorRun.ReplaceAllString(dir, "/")
	dir = invalidDirChar.ReplaceAllString(dir, ".")
	dir = dotRun.ReplaceAllString(dir, ".")
	return strings.Trim(dir, "/-. ")
}

// splitEntryName derives the short file name and directory label of an
// archive entry. ok is false for entries that are skipped: empty names and
// platform metadata such as "._foo" or ".DS_Store".
func splitEntryName(name string) (short, dir string, ok bool) {
	i := strings.LastIndexAny(name, `/\`)
	short = name[i+1:]
	if short == "" || strings.HasPrefix(short, "._") || strings.HasPrefix(short, ".DS_Store") {
		return "", "", false
	}
	if i > 0 {
		dir = SanitizeDirectory(strings.TrimRight(name[:i], `/\`))
	}
	return short, dir, true
}

// nameDecoder decodes zip entry names that are not flagged as UTF-8.
type nameDecoder struct {
	charset string
	enc     encoding.Encoding
}

func newNameDecoder(charset string) (*nameDecoder, error) {
	if charset == "" {
		return &nameDecoder{}, nil
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("zip name charset %q: %w", charset, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("zip name charset %q is not supported", charset)
	}
	return &nameDecoder{charset: charset, enc: enc}, nil
}

// decode returns the entry name as UTF-8.
func (d *nameDecoder) decode(f *zip.File) (string, error) {
	if !f.NonUTF8 && utf8.ValidString(f.Name) {
		return f.Name, nil
	}
	if d != nil && d.enc != nil {
		s, err := d.enc.NewDecoder().String(f.Name)
		if err == nil && !strings.ContainsRune(s, utf8.RuneError) {
			return s, nil
		}
		return "", fmt.Errorf("%w: %q under %s", ErrUndecodableName, f.Name, d.charset)
	}
	if utf8.ValidString(f.Name) {
		return f.Name, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUndecodableName, f.Name)
}
