package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/JonMunkholm/ingest/internal/ingest"
	"github.com/JonMunkholm/ingest/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxFieldSize caps each non-file multipart field and the reference body.
const (
	maxFieldSize     = 4 << 10
	maxReferenceBody = 64 << 10
)

var errNoFile = errors.New("no file provided")

// ingestFields are the optional form fields of an upload.
type ingestFields struct {
	contentType  string
	checksum     string
	checksumType string
}

func (f ingestFields) parseChecksum() (*ingest.Checksum, error) {
	return ingest.ParseChecksum(f.checksumType, f.checksum)
}

// handleIngest streams a multipart upload into the pipeline.
//
// The file is taken from the "file" part without buffering the whole form.
// The optional content_type, checksum and checksum_type fields must precede
// it. Answers 200 with the record on success, 422 when the upload was
// refused, and the mapped error status otherwise.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", errNoFile, err))
		return
	}

	var fields ingestFields
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.respondError(w, r, errNoFile)
			return
		}
		if err != nil {
			s.respondError(w, r, &ingest.ExecutionError{Kind: ingest.KindInvalidRequest, Message: "malformed multipart body", Err: err})
			return
		}

		if part.FormName() == "file" {
			s.ingestPart(w, r, part, fields)
			part.Close()
			return
		}

		value, err := readField(part)
		part.Close()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		switch part.FormName() {
		case "content_type":
			fields.contentType = value
		case "checksum":
			fields.checksum = value
		case "checksum_type":
			fields.checksumType = value
		}
	}
}

func (s *Server) ingestPart(w http.ResponseWriter, r *http.Request, part *multipart.Part, fields ingestFields) {
	name := part.FileName()
	if name == "" {
		s.respondError(w, r, errNoFile)
		return
	}

	sum, err := fields.parseChecksum()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	contentType := fields.contentType
	if contentType == "" {
		contentType = part.Header.Get("Content-Type")
	}

	rec, err := s.service.Ingest(WithRequestMetadata(r.Context(), r), core.IngestRequest{
		Body:        part,
		FileName:    name,
		ContentType: contentType,
		Checksum:    sum,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeIngestion(w, rec)
}

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", &ingest.ExecutionError{Kind: ingest.KindInvalidRequest, Message: "unreadable form field", Err: err}
	}
	if len(b) > maxFieldSize {
		return "", &ingest.ExecutionError{Kind: ingest.KindInvalidRequest,
			Message: fmt.Sprintf("form field %q is too long", part.FormName())}
	}
	return strings.TrimSpace(string(b)), nil
}

// referenceRequest registers bytes that are already in storage.
type referenceRequest struct {
	StorageIdentifier string `json:"storage_identifier"`
	FileName          string `json:"file_name"`
	ContentType       string `json:"content_type"`
	Size              int64  `json:"size"`
	Checksum          string `json:"checksum"`
	ChecksumType      string `json:"checksum_type"`
}

// handleIngestReference records a storage-referenced file.
func (s *Server) handleIngestReference(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReferenceBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, r, &ingest.ExecutionError{Kind: ingest.KindInvalidRequest, Message: "invalid JSON body", Err: err})
		return
	}
	if strings.TrimSpace(req.StorageIdentifier) == "" {
		s.respondError(w, r, &ingest.ExecutionError{Kind: ingest.KindInvalidRequest, FileName: req.FileName,
			Message: "storage_identifier is required"})
		return
	}

	sum, err := ingest.ParseChecksum(req.ChecksumType, req.Checksum)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rec, err := s.service.Ingest(WithRequestMetadata(r.Context(), r), core.IngestRequest{
		StorageIdentifier: req.StorageIdentifier,
		DeclaredSize:      req.Size,
		FileName:          req.FileName,
		ContentType:       req.ContentType,
		Checksum:          sum,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeIngestion(w, rec)
}

// writeIngestion answers with the record; refusals get 422.
func writeIngestion(w http.ResponseWriter, rec *store.Ingestion) {
	status := http.StatusOK
	if rec.Outcome != ingest.OutcomeSuccess {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, rec)
}

// handleGetIngestion returns one of the caller's ingestions.
func (s *Server) handleGetIngestion(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetIngestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleListIngestions returns the caller's most recent ingestions.
func (s *Server) handleListIngestions(w http.ResponseWriter, r *http.Request) {
	owner := core.GetOwnerFromContext(r.Context())
	limit := parseIntParam(r, "limit", store.DefaultListLimit)

	recs, err := s.service.ListIngestions(r.Context(), owner, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*store.Ingestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":      owner,
		"ingestions": recs,
	})
}
