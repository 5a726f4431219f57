package shapefile

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/pipemap/internal/model"
)

// layerKind maps a shapefile geometry type to the collection kind and layout.
// Measure (M) types are read as XY; the measures are dropped.
func layerKind(t shp.ShapeType) (model.GeometryKind, geom.Layout, error) {
	switch t {
	case shp.POINT, shp.POINTM:
		return model.KindPoint, geom.XY, nil
	case shp.POINTZ:
		return model.KindPoint, geom.XYZ, nil
	case shp.MULTIPOINT, shp.MULTIPOINTM:
		return model.KindMultiPoint, geom.XY, nil
	case shp.MULTIPOINTZ:
		return model.KindMultiPoint, geom.XYZ, nil
	case shp.POLYLINE, shp.POLYLINEM:
		return model.KindLine, geom.XY, nil
	case shp.POLYLINEZ:
		return model.KindLine, geom.XYZ, nil
	case shp.POLYGON, shp.POLYGONM:
		return model.KindPolygon, geom.XY, nil
	case shp.POLYGONZ:
		return model.KindPolygon, geom.XYZ, nil
	default:
		return "", geom.NoLayout, eris.Errorf("shapefile: unsupported geometry type %d", t)
	}
}

// shapeType is the inverse of layerKind.
func shapeType(kind model.GeometryKind, layout geom.Layout) (shp.ShapeType, error) {
	z := layout == geom.XYZ
	switch kind {
	case model.KindPoint:
		if z {
			return shp.POINTZ, nil
		}
		return shp.POINT, nil
	case model.KindMultiPoint:
		if z {
			return shp.MULTIPOINTZ, nil
		}
		return shp.MULTIPOINT, nil
	case model.KindLine:
		if z {
			return shp.POLYLINEZ, nil
		}
		return shp.POLYLINE, nil
	case model.KindPolygon:
		if z {
			return shp.POLYGONZ, nil
		}
		return shp.POLYGON, nil
	default:
		return shp.NULL, eris.Errorf("shapefile: unsupported geometry kind %q", kind)
	}
}

// toGeom converts a go-shp shape to a go-geom geometry. Null and empty shapes
// map to nil.
func toGeom(shape shp.Shape) (geom.T, error) {
	switch s := shape.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return pointGeom(geom.XY, s.X, s.Y, 0), nil
	case *shp.PointM:
		return pointGeom(geom.XY, s.X, s.Y, 0), nil
	case *shp.PointZ:
		return pointGeom(geom.XYZ, s.X, s.Y, s.Z), nil
	case *shp.MultiPoint:
		return multiPointGeom(s.Points, nil), nil
	case *shp.MultiPointM:
		return multiPointGeom(s.Points, nil), nil
	case *shp.MultiPointZ:
		return multiPointGeom(s.Points, s.ZArray), nil
	case *shp.PolyLine:
		return lineGeom(s.Parts, s.Points, nil), nil
	case *shp.PolyLineM:
		return lineGeom(s.Parts, s.Points, nil), nil
	case *shp.PolyLineZ:
		return lineGeom(s.Parts, s.Points, s.ZArray), nil
	case *shp.Polygon:
		return polygonGeom(s.Parts, s.Points, nil), nil
	case *shp.PolygonM:
		return polygonGeom(s.Parts, s.Points, nil), nil
	case *shp.PolygonZ:
		return polygonGeom(s.Parts, s.Points, s.ZArray), nil
	default:
		return nil, eris.Errorf("shapefile: unsupported shape %T", shape)
	}
}

func pointGeom(layout geom.Layout, x, y, z float64) geom.T {
	if math.IsNaN(x) || math.IsNaN(y) {
		return nil
	}
	if layout == geom.XYZ {
		return geom.NewPointFlat(layout, []float64{x, y, z})
	}
	return geom.NewPointFlat(layout, []float64{x, y})
}

func multiPointGeom(points []shp.Point, z []float64) geom.T {
	if len(points) == 0 {
		return nil
	}
	layout := layoutFor(z)
	return geom.NewMultiPointFlat(layout, flatCoords(points, z, 0, len(points)))
}

// lineGeom returns a LineString for single-part shapes and a MultiLineString
// otherwise.
func lineGeom(parts []int32, points []shp.Point, z []float64) geom.T {
	if len(points) == 0 {
		return nil
	}
	layout := layoutFor(z)
	ranges := partRanges(parts, len(points))
	if len(ranges) == 1 {
		return geom.NewLineStringFlat(layout, flatCoords(points, z, ranges[0][0], ranges[0][1]))
	}

	var flat []float64
	ends := make([]int, 0, len(ranges))
	for _, r := range ranges {
		flat = append(flat, flatCoords(points, z, r[0], r[1])...)
		ends = append(ends, len(flat))
	}
	return geom.NewMultiLineStringFlat(layout, flat, ends)
}

// polygonGeom groups rings into polygons. Shapefile outer rings run clockwise
// and holes counter-clockwise; each clockwise ring starts a new polygon and
// the holes that follow attach to it.
func polygonGeom(parts []int32, points []shp.Point, z []float64) geom.T {
	if len(points) == 0 {
		return nil
	}
	layout := layoutFor(z)
	stride := layout.Stride()

	var flat []float64
	var endss [][]int
	for _, r := range partRanges(parts, len(points)) {
		ring := flatCoords(points, z, r[0], r[1])
		hole := len(ring) >= 4*stride && xy.IsRingCounterClockwise(layout, ring)
		flat = append(flat, ring...)
		if !hole || len(endss) == 0 {
			endss = append(endss, nil)
		}
		last := len(endss) - 1
		endss[last] = append(endss[last], len(flat))
	}

	if len(endss) == 1 {
		return geom.NewPolygonFlat(layout, flat, endss[0])
	}
	return geom.NewMultiPolygonFlat(layout, flat, endss)
}

func layoutFor(z []float64) geom.Layout {
	if z != nil {
		return geom.XYZ
	}
	return geom.XY
}

// partRanges converts shapefile part offsets to [start, end) point ranges,
// clamping malformed offsets.
func partRanges(parts []int32, numPoints int) [][2]int {
	if len(parts) == 0 {
		return [][2]int{{0, numPoints}}
	}
	ranges := make([][2]int, 0, len(parts))
	for i, p := range parts {
		start := clamp(int(p), 0, numPoints)
		end := numPoints
		if i+1 < len(parts) {
			end = clamp(int(parts[i+1]), start, numPoints)
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// flatCoords flattens points[start:end] into go-geom coordinate order.
func flatCoords(points []shp.Point, z []float64, start, end int) []float64 {
	stride := 2
	if z != nil {
		stride = 3
	}
	flat := make([]float64, 0, (end-start)*stride)
	for j := start; j < end; j++ {
		flat = append(flat, points[j].X, points[j].Y)
		if z != nil {
			var zv float64
			if j < len(z) {
				zv = z[j]
			}
			flat = append(flat, zv)
		}
	}
	return flat
}

// toShape converts a geometry back to the shape type of the layer. A nil
// geometry becomes an empty shape; null points are written as NaN.
func toShape(g geom.T, t shp.ShapeType) (shp.Shape, error) {
	var flat []float64
	var ends []int
	stride := 2
	if g != nil {
		if err := checkFamily(g, t); err != nil {
			return nil, err
		}
		flat = g.FlatCoords()
		stride = g.Stride()
		ends = partEnds(g)
	}

	points, zs := splitCoords(flat, stride)
	parts := partStarts(ends, stride)

	switch t {
	case shp.POINT:
		if len(points) == 0 {
			return &shp.Point{X: math.NaN(), Y: math.NaN()}, nil
		}
		return &shp.Point{X: points[0].X, Y: points[0].Y}, nil
	case shp.POINTZ:
		if len(points) == 0 {
			return &shp.PointZ{X: math.NaN(), Y: math.NaN()}, nil
		}
		return &shp.PointZ{X: points[0].X, Y: points[0].Y, Z: zs[0]}, nil
	case shp.MULTIPOINT:
		return &shp.MultiPoint{
			Box:       shp.BBoxFromPoints(points),
			NumPoints: int32(len(points)),
			Points:    points,
		}, nil
	case shp.MULTIPOINTZ:
		return &shp.MultiPointZ{
			Box:       shp.BBoxFromPoints(points),
			NumPoints: int32(len(points)),
			Points:    points,
			ZRange:    zRange(zs),
			ZArray:    zs,
			MArray:    make([]float64, len(points)),
		}, nil
	case shp.POLYLINE:
		return &shp.PolyLine{
			Box:       shp.BBoxFromPoints(points),
			NumParts:  int32(len(parts)),
			NumPoints: int32(len(points)),
			Parts:     parts,
			Points:    points,
		}, nil
	case shp.POLYGON:
		return &shp.Polygon{
			Box:       shp.BBoxFromPoints(points),
			NumParts:  int32(len(parts)),
			NumPoints: int32(len(points)),
			Parts:     parts,
			Points:    points,
		}, nil
	case shp.POLYLINEZ:
		return &shp.PolyLineZ{
			Box:       shp.BBoxFromPoints(points),
			NumParts:  int32(len(parts)),
			NumPoints: int32(len(points)),
			Parts:     parts,
			Points:    points,
			ZRange:    zRange(zs),
			ZArray:    zs,
			MArray:    make([]float64, len(points)),
		}, nil
	case shp.POLYGONZ:
		return &shp.PolygonZ{
			Box:       shp.BBoxFromPoints(points),
			NumParts:  int32(len(parts)),
			NumPoints: int32(len(points)),
			Parts:     parts,
			Points:    points,
			ZRange:    zRange(zs),
			ZArray:    zs,
			MArray:    make([]float64, len(points)),
		}, nil
	default:
		return nil, eris.Errorf("shapefile: cannot write shape type %d", t)
	}
}

// checkFamily rejects geometries that do not belong in a layer of type t.
func checkFamily(g geom.T, t shp.ShapeType) error {
	var ok bool
	switch g.(type) {
	case *geom.Point:
		ok = t == shp.POINT || t == shp.POINTZ
	case *geom.MultiPoint:
		ok = t == shp.MULTIPOINT || t == shp.MULTIPOINTZ
	case *geom.LineString, *geom.MultiLineString:
		ok = t == shp.POLYLINE || t == shp.POLYLINEZ
	case *geom.Polygon, *geom.MultiPolygon:
		ok = t == shp.POLYGON || t == shp.POLYGONZ
	}
	if !ok {
		return eris.Errorf("shapefile: geometry %T does not fit shape type %d", g, t)
	}
	return nil
}

// partEnds returns the flat-coordinate end offset of every part or ring.
func partEnds(g geom.T) []int {
	switch g := g.(type) {
	case *geom.LineString:
		return []int{len(g.FlatCoords())}
	case *geom.MultiPolygon:
		var ends []int
		for _, e := range g.Endss() {
			ends = append(ends, e...)
		}
		return ends
	default:
		return g.Ends()
	}
}

func partStarts(ends []int, stride int) []int32 {
	starts := make([]int32, 0, len(ends))
	prev := 0
	for _, e := range ends {
		starts = append(starts, int32(prev/stride))
		prev = e
	}
	return starts
}

func splitCoords(flat []float64, stride int) ([]shp.Point, []float64) {
	n := 0
	if stride > 0 {
		n = len(flat) / stride
	}
	points := make([]shp.Point, n)
	zs := make([]float64, n)
	for i := 0; i < n; i++ {
		c := flat[i*stride : (i+1)*stride]
		points[i] = shp.Point{X: c[0], Y: c[1]}
		if stride > 2 {
			zs[i] = c[2]
		}
	}
	return points, zs
}

func zRange(zs []float64) [2]float64 {
	if len(zs) == 0 {
		return [2]float64{}
	}
	r := [2]float64{zs[0], zs[0]}
	for _, z := range zs[1:] {
		r[0] = math.Min(r[0], z)
		r[1] = math.Max(r[1], z)
	}
	return r
}
