package ingest

// shapefile.go re-packages zipped shapefiles. A shapefile is a set of
// companion files sharing a base name (geometry, index, attributes,
// projection, plus optional extras). Each complete set in the upload is
// re-zipped into its own archive; all other entries are stored as
// individual files.

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ShapefileRequired are the extensions every shapefile set must have.
var ShapefileRequired = []string{"shp", "shx", "dbf", "prj"}

// shapeGroup collects the entries sharing a directory and base name.
type shapeGroup struct {
	dir     string
	base    string
	members map[string]shapeMember // lower-case extension -> entry
	order   []string               // extensions in archive order
}

type shapeMember struct {
	short string
	file  *zip.File
}

func (g *shapeGroup) isShapefile() bool {
	_, ok := g.members["shp"]
	return ok
}

func (g *shapeGroup) missing() []string {
	var out []string
	for _, ext := range ShapefileRequired {
		if _, ok := g.members[ext]; !ok {
			out = append(out, ext)
		}
	}
	return out
}

// groupKey splits an entry path into its grouping key, base name and
// lower-case extension.
func groupKey(name string) (key, base, ext string) {
	name = strings.ReplaceAll(name, "\\", "/")
	dir, short := path.Split(name)
	ext = strings.ToLower(strings.TrimPrefix(path.Ext(short), "."))
	base = strings.TrimSuffix(short, path.Ext(short))
	return strings.ToLower(dir + base), base, ext
}

// hasCompleteShapefile reports whether names contain at least one full
// shapefile set.
func hasCompleteShapefile(names []string) bool {
	exts := make(map[string]map[string]bool)
	for _, n := range names {
		key, _, ext := groupKey(n)
		if exts[key] == nil {
			exts[key] = make(map[string]bool)
		}
		exts[key][ext] = true
	}
	for _, set := range exts {
		complete := true
		for _, req := range ShapefileRequired {
			if !set[req] {
				complete = false
				break
			}
		}
		if complete {
			return true
		}
	}
	return false
}

// repackShapefile produces one zip per complete shapefile set and one file
// per remaining entry. An incomplete set makes the whole call an Error.
// Guard refusals fall back to storing the upload as is; I/O failures while
// re-packaging are fatal.
func (r *run) repackShapefile(staged *StagedFile) (res *Result, err error) {
	zr, err := zip.OpenReader(staged.Path())
	if err != nil {
		r.log.Error("could not open zipped shapefile", "error", err)
		return errorResult(r.req.FileName, r.ct.Type, r.p.messages(MsgShapefileInvalid)), nil
	}
	defer zr.Close()

	var groups []*shapeGroup
	byKey := make(map[string]*shapeGroup)
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
			continue
		}
		key, base, ext := groupKey(name)
		g := byKey[key]
		if g == nil {
			g = &shapeGroup{dir: dir, base: base, members: make(map[string]shapeMember)}
			byKey[key] = g
			groups = append(groups, g)
		}
		if _, dup := g.members[ext]; !dup {
			g.order = append(g.order, ext)
		}
		g.members[ext] = shapeMember{short: short, file: zf}
	}

	for _, g := range groups {
		if !g.isShapefile() {
			continue
		}
		if missing := g.missing(); len(missing) > 0 {
			r.log.Error("incomplete shapefile set", "set", g.base, "missing", missing)
			return errorResult(r.req.FileName, r.ct.Type,
				r.p.messages(MsgShapefileIncomplete, g.base, strings.Join(missing, ", "))), nil
		}
	}

	work, err := r.p.scratch.MkdirTemp("shp")
	if err != nil {
		return nil, &ExecutionError{Kind: KindShapefile, FileName: r.req.FileName, Err: err}
	}
	defer work.Release()

	e := r.newEmitter()
	defer func() {
		if res == nil || !res.Succeeded() {
			e.discard()
		}
	}()

	for i, g := range groups {
		if g.isShapefile() {
			err = r.emitShapefileSet(e, work, i, g)
		} else {
			err = r.emitLoose(e, g)
		}
		if err == nil {
			continue
		}
		var re *RejectError
		if errors.As(err, &re) {
			key, limit := MsgShapefileQuota, r.limits.Quota
			if re.Decision == RejectSize {
				key, limit = MsgShapefileSize, r.limits.MaxFileSize
			}
			r.log.Error("shapefile component refused", "entry", re.FileName, "decision", re.Decision)
			return errorResult(r.req.FileName, r.ct.Type, r.p.messages(key, limitArg(limit))), nil
		}
		return nil, &ExecutionError{
			Kind:     KindShapefile,
			FileName: r.req.FileName,
			Message:  "failed to process one of the components of the unpacked shapefile",
			Err:      err,
		}
	}

	if len(e.files) == 0 {
		r.log.Error("no files produced from zipped shapefile")
		return errorResult(r.req.FileName, r.ct.Type, r.p.messages(MsgShapefileInvalid)), nil
	}
	return r.success(e, MethodShapefile), nil
}

// emitShapefileSet re-zips one complete set under work and emits it as
// "<base>.zip".
func (r *run) emitShapefileSet(e *Emitter, work *StagedDir, idx int, g *shapeGroup) error {
	p := filepath.Join(work.Path(), fmt.Sprintf("%03d-%s.zip", idx, sanitizeFileName(g.base)))
	if err := writeShapefileZip(p, g); err != nil {
		return err
	}
	_, err := e.EmitFile(p, g.base+".zip", g.dir)
	return err
}

// emitLoose emits every member of a non-shapefile group on its own.
func (r *run) emitLoose(e *Emitter, g *shapeGroup) error {
	for _, ext := range g.order {
		m := g.members[ext]
		if err := r.emitEntry(e, m.file, m.short, g.dir); err != nil {
			return err
		}
	}
	return nil
}

// writeShapefileZip writes the members of g into a new zip at p, ordered
// by extension.
func writeShapefileZip(p string, g *shapeGroup) (err error) {
	out, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create rezipped shapefile: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	exts := append([]string(nil), g.order...)
	sort.Strings(exts)

	zw := zip.NewWriter(out)
	for _, ext := range exts {
		m := g.members[ext]
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     m.short,
			Method:   zip.Deflate,
			Modified: m.file.Modified,
		})
		if err != nil {
			return fmt.Errorf("add %s: %w", m.short, err)
		}
		rc, err := m.file.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", m.short, err)
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("copy %s: %w", m.short, err)
		}
	}
	return zw.Close()
}

// sanitizeFileName keeps scratch names filesystem-safe.
func sanitizeFileName(name string) string {
	name = invalidDirChar.ReplaceAllString(name, "_")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		return "shapefile"
	}
	return name
}
