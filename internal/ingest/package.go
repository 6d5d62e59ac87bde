package ingest

import "errors"

// errEmptyPackage is returned when a handler reports success without files.
var errEmptyPackage = errors.New("package handler produced no files")

// unpackPackage hands a self-describing package to the configured handler.
// Handler failures are fatal.
func (r *run) unpackPackage(staged *StagedFile) (*Result, error) {
	e := r.newEmitter()

	res, err := r.p.pkg.HandlePackage(staged, r.req.FileName, e)
	if err == nil && res != nil && res.Succeeded() && len(e.files) == 0 {
		err = errEmptyPackage
	}
	if err != nil {
		e.discard()
		return nil, &ExecutionError{
			Kind:     KindPackage,
			FileName: r.req.FileName,
			Message:  "failed to process uploaded package",
			Err:      err,
		}
	}
	if res == nil || !res.Succeeded() {
		e.discard()
		if res == nil {
			res = errorResult(r.req.FileName, r.ct.Type, "")
		}
		return res, nil
	}

	res.Outcome = OutcomeSuccess
	res.Method = MethodPackage
	res.Files = e.Files()
	if res.FileName == "" {
		res.FileName = r.req.FileName
	}
	if res.ContentType == "" {
		res.ContentType = r.ct.Type
	}
	return res, nil
}
