// Package crs detects the coordinate reference system of a shapefile and
// reprojects collections to WGS84 (EPSG:4326).
package crs

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/go-spatial/proj"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pipemap/internal/model"
)

// WGS84 is the geographic reference every collection is normalized to.
const WGS84 = 4326

// ErrUndetected is returned when a .prj is missing or cannot be recognized and
// no override code was configured.
var ErrUndetected = eris.New("crs: coordinate reference system could not be determined")

// aliases maps deprecated or ESRI codes onto the projection they denote.
var aliases = map[int]int{
	900913: 3857,
	3785:   3857,
	102100: 3857,
	102113: 3857,
	54004:  3395,
	32662:  4087,
	54002:  4087,
}

// geographic lists lon/lat codes served as-is. Datum shifts between them are
// below a metre and ignored.
var geographic = map[int]bool{
	WGS84: true,
	4269:  true, // NAD83
	4258:  true, // ETRS89
	4617:  true, // NAD83(CSRS)
	4759:  true, // NAD83(NSRS2007)
	6318:  true, // NAD83(2011)
}

type kind int

const (
	kindUnresolved kind = iota
	kindGeographic
	kindBuiltin
	kindProjected
)

// System is a resolved coordinate reference system.
type System struct {
	// Code is the EPSG code, or 0 when the .prj carries none.
	Code int
	// Name is the CRS name from the .prj, if any.
	Name string

	kind    kind
	builtin proj.EPSGCode
	params  projParams
}

// Geographic reports whether coordinates in s are already lon/lat degrees.
func (s System) Geographic() bool { return s.kind == kindGeographic }

// String formats s as "EPSG:<code>", falling back to its name.
func (s System) String() string {
	switch {
	case s.Code != 0:
		return String(s.Code)
	case s.Name != "":
		return s.Name
	}
	return "unknown"
}

// Canonical returns the code used for projection math.
func Canonical(code int) int {
	if c, ok := aliases[code]; ok {
		return c
	}
	return code
}

// Supported reports whether collections in code can be reprojected without a
// .prj describing the projection.
func Supported(code int) bool {
	_, err := FromEPSG(code)
	return err == nil
}

// FromEPSG builds the System for a code. Geographic codes, the Mercator
// family and the WGS84, NAD83 and ETRS89 UTM zones are known.
func FromEPSG(code int) (System, error) {
	c := Canonical(code)
	switch {
	case geographic[c]:
		return System{Code: code, kind: kindGeographic}, nil
	case c == 3857 || c == 3395 || c == 4087:
		return System{Code: code, kind: kindBuiltin, builtin: proj.EPSGCode(c)}, nil
	case c >= 32601 && c <= 32660:
		return System{Code: code, kind: kindProjected, params: utm(c-32600, false, ellipsoidWGS84)}, nil
	case c >= 32701 && c <= 32760:
		return System{Code: code, kind: kindProjected, params: utm(c-32700, true, ellipsoidWGS84)}, nil
	case c >= 26901 && c <= 26923:
		return System{Code: code, kind: kindProjected, params: utm(c-26900, false, ellipsoidGRS80)}, nil
	case c >= 25828 && c <= 25838:
		return System{Code: code, kind: kindProjected, params: utm(c-25800, false, ellipsoidGRS80)}, nil
	}
	return System{}, eris.Errorf("crs: reprojection from EPSG:%d is not supported", code)
}

// Resolve picks the source CRS. A recognized .prj always wins, since it is
// rewritten on every save. The override code is used only when the .prj is
// missing or cannot be recognized.
func Resolve(prj string, override int) (System, error) {
	if strings.TrimSpace(prj) == "" {
		if override == 0 {
			return System{}, eris.Wrap(ErrUndetected, "crs: no .prj sidecar")
		}
		return FromEPSG(override)
	}

	sys, err := Detect(prj)
	if err == nil {
		if override != 0 && Canonical(override) != Canonical(sys.Code) {
			zap.L().Debug("crs: .prj takes precedence over configured source",
				zap.String("prj", sys.String()),
				zap.Int("configured", override),
			)
		}
		return sys, nil
	}
	if override == 0 || !errors.Is(err, ErrUndetected) {
		return System{}, err
	}
	zap.L().Warn("crs: .prj not recognized, using configured source",
		zap.Int("configured", override),
		zap.Error(err),
	)
	return FromEPSG(override)
}

// ToWGS84 reprojects every coordinate of c from sys into EPSG:4326 in place.
// Feature count, order and attributes are untouched.
func ToWGS84(c *model.Collection, sys System) error {
	switch sys.kind {
	case kindGeographic:
		c.SRID = WGS84
		return nil
	case kindBuiltin, kindProjected:
	default:
		return eris.New("crs: unresolved coordinate system")
	}

	var p *projection
	if sys.kind == kindProjected {
		var err error
		if p, err = sys.params.build(); err != nil {
			return eris.Wrapf(err, "crs: build %s", sys)
		}
	}

	for i, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		err := transformXY(f.Geometry.FlatCoords(), f.Geometry.Stride(), func(xy []float64) ([]float64, error) {
			if p != nil {
				return p.inverse(xy)
			}
			return proj.Inverse(sys.builtin, xy)
		})
		if err != nil {
			return eris.Wrapf(err, "crs: reproject feature %d", i)
		}
	}

	zap.L().Debug("crs: reprojected collection",
		zap.String("from", sys.String()),
		zap.Int("to", WGS84),
		zap.Int("features", len(c.Features)),
	)
	c.SRID = WGS84
	return nil
}

// FromWGS84 projects lon/lat ordinates in flat into sys in place. Ordinates
// past the second of each coordinate are left alone.
func (s System) FromWGS84(flat []float64, stride int) error {
	switch s.kind {
	case kindGeographic:
		return nil
	case kindBuiltin:
		return transformXY(flat, stride, func(lonlat []float64) ([]float64, error) {
			return proj.Convert(s.builtin, lonlat)
		})
	case kindProjected:
		p, err := s.params.build()
		if err != nil {
			return eris.Wrapf(err, "crs: build %s", s)
		}
		return transformXY(flat, stride, p.forward)
	}
	return eris.New("crs: unresolved coordinate system")
}

// transformXY runs fn over the XY ordinates of flat, leaving any further
// ordinates (Z, M) as they are.
func transformXY(flat []float64, stride int, fn func([]float64) ([]float64, error)) error {
	if stride < 2 || len(flat) == 0 {
		return nil
	}
	n := len(flat) / stride
	xy := make([]float64, 0, n*2)
	for i := 0; i < n; i++ {
		xy = append(xy, flat[i*stride], flat[i*stride+1])
	}

	out, err := fn(xy)
	if err != nil {
		return err
	}
	if len(out) != len(xy) {
		return eris.Errorf("crs: projection returned %d ordinates, want %d", len(out), len(xy))
	}
	for i := 0; i < n; i++ {
		x, y := out[i*2], out[i*2+1]
		if !finite(x) || !finite(y) {
			return eris.Errorf("crs: coordinate %d is outside the projection domain", i)
		}
		flat[i*stride] = x
		flat[i*stride+1] = y
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) != math.MaxFloat64
}

// String formats a code as "EPSG:<code>".
func String(code int) string {
	return "EPSG:" + strconv.Itoa(code)
}
