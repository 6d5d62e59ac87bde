package ingest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// ChecksumType names a fixity algorithm.
type ChecksumType string

const (
	MD5    ChecksumType = "MD5"
	SHA1   ChecksumType = "SHA-1"
	SHA256 ChecksumType = "SHA-256"
	SHA512 ChecksumType = "SHA-512"
)

// DefaultFixity is used when no algorithm is configured.
const DefaultFixity = MD5

// Checksum is a hex-encoded digest plus its algorithm.
type Checksum struct {
	Type  ChecksumType `json:"type"`
	Value string       `json:"value"`
}

// ParseChecksumType accepts the canonical names and common spellings such
// as "sha256" or "SHA1".
func ParseChecksumType(s string) (ChecksumType, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	switch norm {
	case "MD5":
		return MD5, nil
	case "SHA1":
		return SHA1, nil
	case "SHA256":
		return SHA256, nil
	case "SHA512":
		return SHA512, nil
	}
	return "", fmt.Errorf("unsupported checksum type %q", s)
}

// NewHash returns a fresh hash.Hash for t.
func (t ChecksumType) NewHash() (hash.Hash, error) {
	switch t {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("unsupported checksum type %q", string(t))
}

// Compute digests everything read from r.
func Compute(t ChecksumType, r io.Reader) (Checksum, error) {
	h, err := t.NewHash()
	if err != nil {
		return Checksum{}, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return Checksum{}, fmt.Errorf("compute %s: %w", t, err)
	}
	return Checksum{Type: t, Value: hex.EncodeToString(h.Sum(nil))}, nil
}

// ComputeFile digests the file at p.
func ComputeFile(t ChecksumType, p string) (Checksum, error) {
	f, err := os.Open(p)
	if err != nil {
		return Checksum{}, err
	}
	defer f.Close()
	return Compute(t, f)
}

// ParseChecksum builds a client-supplied checksum. An empty value yields
// nil; an empty type means DefaultFixity. Values are lowercased.
func ParseChecksum(typ, value string) (*Checksum, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t := DefaultFixity
	if strings.TrimSpace(typ) != "" {
		parsed, err := ParseChecksumType(typ)
		if err != nil {
			return nil, err
		}
		t = parsed
	}
	return &Checksum{Type: t, Value: strings.ToLower(value)}, nil
}
