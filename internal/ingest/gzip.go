package ingest

import (
	"strings"

	"github.com/klauspost/compress/gzip"
)

// gunzip decompresses a gzip upload into one file named without its ".gz"
// suffix. Any failure falls back to storing the compressed upload.
func (r *run) gunzip(staged *StagedFile) (*Result, error) {
	f, err := staged.Open()
	if err != nil {
		return nil, r.unpackFailure(err, MsgGunzipFailed, MsgGunzipSize, MsgGunzipQuota)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, r.unpackFailure(err, MsgGunzipFailed, MsgGunzipSize, MsgGunzipQuota)
	}
	defer zr.Close()

	e := r.newEmitter()
	if _, err := e.Emit(zr, stripGzipSuffix(r.req.FileName), ""); err != nil {
		e.discard()
		return nil, r.unpackFailure(err, MsgGunzipFailed, MsgGunzipSize, MsgGunzipQuota)
	}
	return r.success(e, MethodGzip), nil
}

// stripGzipSuffix removes a trailing ".gz", in any case.
func stripGzipSuffix(name string) string {
	if len(name) > 3 && strings.EqualFold(name[len(name)-3:], ".gz") {
		return name[:len(name)-3]
	}
	return name
}
