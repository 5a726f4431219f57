// Package dataset owns the pipe-asset shapefile: it loads it in WGS84, renders
// it as GeoJSON, applies installation-year updates and bundles its files for
// download.
package dataset

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/pipemap/internal/crs"
	"github.com/sells-group/pipemap/internal/model"
	"github.com/sells-group/pipemap/internal/shapefile"
)

// Default field names.
const (
	DefaultIDField   = "Asset_ID"
	DefaultYearField = "Inst_Year"
)

// Config locates the dataset and names its key fields.
type Config struct {
	// Path is the .shp file. Sidecars live next to it.
	Path string
	// IDField holds the asset identifier used to find features.
	IDField string
	// YearField is the attribute overwritten by updates.
	YearField string
	// SourceEPSG is used when the .prj is missing or unrecognized.
	SourceEPSG int
	// Encoding overrides the .cpg code page when set.
	Encoding string
}

// Service serves one shapefile. Every call re-reads the files; an RWMutex
// keeps updates from interleaving with each other or with reads.
type Service struct {
	cfg Config
	mu  sync.RWMutex
	log *zap.Logger
}

// New returns a Service for cfg, filling in default field names.
func New(cfg Config) *Service {
	if cfg.IDField == "" {
		cfg.IDField = DefaultIDField
	}
	if cfg.YearField == "" {
		cfg.YearField = DefaultYearField
	}
	return &Service{
		cfg: cfg,
		log: zap.L().With(zap.String("component", "dataset")),
	}
}

// Path returns the .shp path the service reads and writes.
func (s *Service) Path() string {
	return s.cfg.Path
}

// Load reads the dataset and reprojects it to EPSG:4326.
func (s *Service) Load(ctx context.Context) (*model.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

func (s *Service) load() (*model.Collection, error) {
	c, err := shapefile.Read(s.cfg.Path, shapefile.Options{Encoding: s.cfg.Encoding})
	if err != nil {
		return nil, storage(err, "dataset: read shapefile")
	}

	prj, err := shapefile.ReadPRJ(s.cfg.Path)
	if err != nil {
		return nil, storage(err, "dataset: read projection")
	}
	sys, err := crs.Resolve(prj, s.cfg.SourceEPSG)
	if err != nil {
		return nil, storage(err, "dataset: resolve crs")
	}
	if err := crs.ToWGS84(c, sys); err != nil {
		return nil, storage(err, "dataset: reproject")
	}
	return c, nil
}

// SourceCRS returns the reference system the stored coordinates are in.
func (s *Service) SourceCRS() (crs.System, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prj, err := shapefile.ReadPRJ(s.cfg.Path)
	if err != nil {
		return crs.System{}, storage(err, "dataset: read projection")
	}
	sys, err := crs.Resolve(prj, s.cfg.SourceEPSG)
	if err != nil {
		return crs.System{}, storage(err, "dataset: resolve crs")
	}
	return sys, nil
}

// GeoJSON loads the dataset and encodes it as a FeatureCollection. Feature ids
// are the record positions "0".."n-1".
func (s *Service) GeoJSON(ctx context.Context) ([]byte, error) {
	c, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("Shapefile loaded",
		zap.String("path", s.cfg.Path),
		zap.Int("features", len(c.Features)),
	)

	data, err := EncodeGeoJSON(c)
	if err != nil {
		return nil, storage(err, "dataset: encode geojson")
	}
	return data, nil
}

// EncodeGeoJSON renders c as a GeoJSON FeatureCollection. Null geometries are
// encoded as null.
func EncodeGeoJSON(c *model.Collection) ([]byte, error) {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(c.Features)),
	}
	for i, f := range c.Features {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(i),
			Geometry:   f.Geometry,
			Properties: c.Properties(f),
		})
	}
	return fc.MarshalJSON()
}

// Update validates req, then sets the year field on every feature whose
// identifier matches and writes the dataset back. It returns the number of
// features changed. Storage is not read for invalid requests and not written
// when nothing matches.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (int, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.load()
	if err != nil {
		return 0, err
	}

	idIdx := c.FieldIndex(s.cfg.IDField)
	if idIdx < 0 {
		return 0, storage(eris.Errorf("dataset: field %s not in schema", s.cfg.IDField), "dataset: locate identifier")
	}

	id := req.ID.String()
	idField := c.Fields[idIdx]
	var matches []*model.Feature
	for _, f := range c.Features {
		if idField.Matches(f.Value(idIdx), id) {
			matches = append(matches, f)
		}
	}
	if len(matches) == 0 {
		s.log.Info("update: no matching feature", zap.String("id", id))
		return 0, notFound(ErrFeatureNotFound)
	}

	yearIdx := c.FieldIndex(s.cfg.YearField)
	if yearIdx < 0 {
		yearIdx = c.AddField(model.Field{Name: s.cfg.YearField, Type: model.FieldCharacter, Size: 1})
		s.log.Info("update: adding field", zap.String("field", s.cfg.YearField))
	}
	value := req.InstYear.String()
	for _, f := range matches {
		f.Values[yearIdx] = value
	}

	wkt, _ := crs.PRJ(crs.WGS84)
	if err := shapefile.Write(s.cfg.Path, c, shapefile.WriteOptions{
		Encoding: s.cfg.Encoding,
		PRJ:      wkt,
	}); err != nil {
		return 0, storage(err, "dataset: save shapefile")
	}

	s.log.Info("update: saved",
		zap.String("id", id),
		zap.String("value", value),
		zap.Int("matched", len(matches)),
	)
	return len(matches), nil
}

// ArchiveName is the download file name, "<base>.zip".
func (s *Service) ArchiveName() string {
	base := filepath.Base(s.cfg.Path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".zip"
}

// Sidecars lists the dataset's files on disk.
func (s *Service) Sidecars() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := shapefile.Sidecars(s.cfg.Path)
	if err != nil {
		return nil, storage(err, "dataset: list files")
	}
	return files, nil
}

// Archive writes a ZIP of every file named after the dataset to w.
func (s *Service) Archive(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := shapefile.Sidecars(s.cfg.Path)
	if err != nil {
		return storage(err, "dataset: list files")
	}
	if err := shapefile.WriteZip(w, files); err != nil {
		return storage(err, "dataset: write archive")
	}
	s.log.Debug("archive: written", zap.Int("files", len(files)))
	return nil
}
