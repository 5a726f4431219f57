// Package shapefile reads and writes ESRI shapefiles as model collections.
package shapefile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipemap/internal/model"
)

// Options controls how attribute bytes are interpreted.
type Options struct {
	// Encoding overrides the .cpg code page when set.
	Encoding string
}

// Read loads the shapefile at shpPath with every feature and attribute.
// The returned collection has SRID 0; CRS handling is left to the caller.
func Read(shpPath string, opts Options) (*model.Collection, error) {
	if !strings.EqualFold(filepath.Ext(shpPath), ".shp") {
		return nil, eris.Errorf("shapefile: %s is not a .shp file", shpPath)
	}
	if _, err := os.Stat(basePath(shpPath) + ".dbf"); err != nil {
		return nil, eris.Wrapf(err, "shapefile: attribute table for %s", shpPath)
	}

	cp, err := resolveCodec(shpPath, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	kind, layout, err := layerKind(reader.GeometryType)
	if err != nil {
		return nil, err
	}

	raw := reader.Fields()
	fields := make([]model.Field, len(raw))
	for i, f := range raw {
		fields[i] = model.Field{
			Name:      cp.decode(strings.TrimRight(f.String(), "\x00")),
			Type:      model.FieldType(f.Fieldtype),
			Size:      int(f.Size),
			Precision: int(f.Precision),
		}
	}

	c := &model.Collection{
		Kind:   kind,
		Layout: layout,
		Fields: fields,
	}

	for reader.Next() {
		_, shape := reader.Shape()
		g, gErr := toGeom(shape)
		if gErr != nil {
			return nil, gErr
		}

		values := make([]string, len(fields))
		for i := range fields {
			val := strings.TrimRight(reader.Attribute(i), "\x00")
			values[i] = cp.decode(strings.TrimSpace(val))
		}
		c.Features = append(c.Features, &model.Feature{Geometry: g, Values: values})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", shpPath)
	}

	zap.L().Debug("shapefile: read",
		zap.String("path", shpPath),
		zap.String("kind", string(kind)),
		zap.Int("features", len(c.Features)),
		zap.Int("fields", len(fields)),
		zap.String("encoding", cp.name),
	)

	return c, nil
}

// ReadPRJ returns the WKT stored in the .prj sidecar, or "" when there is none.
func ReadPRJ(shpPath string) (string, error) {
	data, err := os.ReadFile(basePath(shpPath) + ".prj")
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "shapefile: read prj")
	}
	return strings.TrimSpace(string(data)), nil
}

// basePath strips the extension from a shapefile path.
func basePath(shpPath string) string {
	return strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
}
