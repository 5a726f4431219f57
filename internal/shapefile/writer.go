package shapefile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipemap/internal/model"
)

// WriteOptions controls the sidecars written next to the geometry.
type WriteOptions struct {
	// Encoding is the code page for attribute text, recorded in the .cpg.
	// Empty means UTF-8.
	Encoding string
	// PRJ is the WKT written to the .prj sidecar. Empty leaves no .prj.
	PRJ string
}

// staleIndexes are sidecars that describe the old geometry and are removed
// after a rewrite.
var staleIndexes = []string{".sbn", ".sbx", ".qix", ".fbn", ".fbx", ".ain", ".aih", ".atx", ".idm", ".ind"}

// Write replaces the shapefile at shpPath with the collection. Files are
// staged under a temporary name in the same folder and renamed into place.
func Write(shpPath string, c *model.Collection, opts WriteOptions) error {
	t, err := shapeType(c.Kind, c.Layout)
	if err != nil {
		return err
	}

	enc := opts.Encoding
	if enc == "" {
		enc = DefaultEncoding
	}
	cp := lookupCodec(enc)
	fields, rows, err := fitFields(c, cp)
	if err != nil {
		return err
	}

	shapes := make([]shp.Shape, len(c.Features))
	for i, f := range c.Features {
		s, sErr := toShape(f.Geometry, t)
		if sErr != nil {
			return eris.Wrapf(sErr, "shapefile: feature %d", i)
		}
		shapes[i] = s
	}

	staged := filepath.Join(filepath.Dir(shpPath), ".pipemap-"+uuid.NewString())
	ok := false
	defer func() {
		if !ok {
			removeStaged(staged)
		}
	}()

	if err := writeStaged(staged, t, fields, shapes, rows); err != nil {
		return err
	}
	if opts.PRJ != "" {
		if err := os.WriteFile(staged+".prj", []byte(opts.PRJ), 0o644); err != nil {
			return eris.Wrap(err, "shapefile: write prj")
		}
	}
	if err := os.WriteFile(staged+".cpg", []byte(cp.name), 0o644); err != nil {
		return eris.Wrap(err, "shapefile: write cpg")
	}

	base := basePath(shpPath)
	for _, ext := range []string{".dbf", ".shx", ".shp", ".prj", ".cpg"} {
		src := stagedPath(staged, ext)
		if src == "" {
			continue
		}
		if err := os.Rename(src, base+ext); err != nil {
			return eris.Wrapf(err, "shapefile: replace %s", base+ext)
		}
	}
	ok = true

	for _, ext := range staleIndexes {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("shapefile: remove stale index", zap.String("path", base+ext), zap.Error(err))
		}
	}

	zap.L().Debug("shapefile: wrote",
		zap.String("path", shpPath),
		zap.Int("features", len(c.Features)),
	)
	return nil
}

func writeStaged(staged string, t shp.ShapeType, fields []shp.Field, shapes []shp.Shape, rows [][]string) error {
	w, err := shp.Create(staged+".shp", t)
	if err != nil {
		return eris.Wrap(err, "shapefile: create")
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return eris.Wrap(err, "shapefile: set fields")
	}

	for i, s := range shapes {
		row := int(w.Write(s))
		for j, v := range rows[i] {
			if err := w.WriteAttribute(row, j, v); err != nil {
				w.Close()
				return eris.Wrapf(err, "shapefile: write attribute %d of feature %d", j, i)
			}
		}
	}
	w.Close()
	return nil
}

// stagedPath finds a staged file. go-shp v0.1.1 names the attribute table
// "<base>dbf" without the dot, so both spellings are checked.
func stagedPath(staged, ext string) string {
	candidates := []string{staged + ext}
	if ext == ".dbf" {
		candidates = append(candidates, staged+"dbf")
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func removeStaged(staged string) {
	matches, _ := filepath.Glob(staged + "*")
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

// fitFields builds the DBF schema for c and the padded, encoded value rows.
// Widths grow to fit the longest value; typed fields holding a value that no
// longer parses become character fields.
func fitFields(c *model.Collection, cp codec) ([]shp.Field, [][]string, error) {
	encoded := make([][]string, len(c.Features))
	for i, f := range c.Features {
		encoded[i] = make([]string, len(c.Fields))
		for j := range c.Fields {
			encoded[i][j] = cp.encode(f.Value(j))
		}
	}

	fields := make([]shp.Field, len(c.Fields))
	for j, fl := range c.Fields {
		typ, size, prec := fl.Type, fl.Size, fl.Precision
		if typ == 0 {
			typ = model.FieldCharacter
		}
		for i, f := range c.Features {
			if !fl.Accepts(f.Value(j)) {
				typ, prec = model.FieldCharacter, 0
			}
			if n := len(encoded[i][j]); n > size {
				size = n
			}
		}
		if size > model.MaxFieldSize {
			return nil, nil, eris.Errorf("shapefile: field %s needs %d bytes, max is %d", fl.Name, size, model.MaxFieldSize)
		}
		if size < 1 {
			size = 1
		}

		var field shp.Field
		field.Fieldtype = byte(typ)
		field.Size = uint8(size)
		field.Precision = uint8(prec)
		name := cp.encode(fl.Name)
		if len(name) > 10 {
			name = name[:10]
		}
		copy(field.Name[:], name)
		fields[j] = field
	}

	for i := range encoded {
		for j, v := range encoded[i] {
			encoded[i][j] = pad(v, int(fields[j].Size), model.FieldType(fields[j].Fieldtype))
		}
	}
	return fields, encoded, nil
}

// pad fills a value to the field width: numbers right-aligned, everything
// else left-aligned.
func pad(v string, size int, t model.FieldType) string {
	if len(v) >= size {
		return v
	}
	fill := strings.Repeat(" ", size-len(v))
	if t == model.FieldNumeric || t == model.FieldFloat {
		return fill + v
	}
	return v + fill
}
