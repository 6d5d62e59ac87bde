package ingest

import (
	"fmt"

	"github.com/klauspost/compress/zip"
)

// unzip stores every regular entry of a zip archive as its own file.
// Entries are read one at a time from the staged archive. The archive is
// abandoned, and the upload stored as is, when an entry name cannot be
// decoded, too many entries are present, or an entry is refused by the
// Guard. An archive that yields no files is also stored as is.
func (r *run) unzip(staged *StagedFile) (res *Result, err error) {
	zr, err := zip.OpenReader(staged.Path())
	if err != nil {
		return nil, r.unpackFailure(err, MsgUnzipFailed, MsgUnzipSize, MsgUnzipQuota)
	}
	defer zr.Close()

	e := r.newEmitter()
	defer func() {
		if res == nil {
			e.discard()
		}
	}()

	maxEntries := r.limits.MaxZipEntries
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}

		name, err := r.p.names.decode(zf)
		if err != nil {
			return nil, &UnpackError{Key: MsgUnzipEncoding, Warning: r.p.messages(MsgUnzipEncoding), Err: err}
		}

		short, dir, ok := splitEntryName(name)
		if !ok {
			r.log.Debug("skipping zip entry", "entry", name)
			continue
		}

		if maxEntries > 0 && len(e.files) >= maxEntries {
			return nil, &UnpackError{
				Key:     MsgUnzipCount,
				Warning: r.p.messages(MsgUnzipCount, maxEntries),
				Err:     fmt.Errorf("more than %d entries", maxEntries),
			}
		}

		if err := r.emitEntry(e, zf, short, dir); err != nil {
			return nil, r.unpackFailure(err, MsgUnzipFailed, MsgUnzipSize, MsgUnzipQuota)
		}
	}

	if len(e.files) == 0 {
		r.log.Debug("zip archive produced no files")
		return nil, nil
	}
	return r.success(e, MethodZip), nil
}

// emitEntry streams one archive entry through e.
func (r *run) emitEntry(e *Emitter, zf *zip.File, short, dir string) error {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open entry %q: %w", short, err)
	}
	defer rc.Close()

	_, err = e.Emit(rc, short, dir)
	return err
}
