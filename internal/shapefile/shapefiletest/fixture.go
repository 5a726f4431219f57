// Package shapefiletest builds small pipe-network shapefiles for tests.
package shapefiletest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pipemap/internal/crs"
)

// Pipe is one fixture record. Coords are lon/lat pairs.
type Pipe struct {
	AssetID  string
	InstYear string
	Material string
	Coords   [][2]float64
}

// Pipes is the default fixture: three pipes in Miami, one without a year.
var Pipes = []Pipe{
	{AssetID: "A1", InstYear: "1990", Material: "PVC", Coords: [][2]float64{{-80.19, 25.77}, {-80.18, 25.78}}},
	{AssetID: "A2", InstYear: "2001", Material: "DI", Coords: [][2]float64{{-80.18, 25.78}, {-80.17, 25.78}, {-80.16, 25.79}}},
	{AssetID: "A3", InstYear: "", Material: "AC", Coords: [][2]float64{{-80.20, 25.76}, {-80.19, 25.77}}},
}

// Options tweaks the written fixture.
type Options struct {
	// EPSG the coordinates are stored in; 0 means 4326.
	EPSG int
	// PRJ is written as the .prj and used to project the coordinates instead
	// of EPSG.
	PRJ string
	// NoPRJ skips the .prj sidecar.
	NoPRJ bool
	// NumericIDs stores Asset_ID as an N field instead of C.
	NumericIDs bool
	// Extra writes additional files into the folder, keyed by file name.
	Extra map[string]string
}

// Write creates dir/pipes.shp with .shx, .dbf, .cpg and .prj sidecars and
// returns the .shp path.
func Write(t testing.TB, dir string, pipes []Pipe, opts Options) string {
	t.Helper()

	code := opts.EPSG
	if code == 0 {
		code = crs.WGS84
	}
	var (
		sys crs.System
		err error
	)
	if opts.PRJ != "" {
		sys, err = crs.Detect(opts.PRJ)
	} else {
		sys, err = crs.FromEPSG(code)
	}
	require.NoError(t, err)
	base := filepath.Join(dir, "pipes")

	idField := shp.StringField("Asset_ID", 10)
	if opts.NumericIDs {
		idField = shp.NumberField("Asset_ID", 10)
	}

	w, err := shp.Create(base+".shp", shp.POLYLINE)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		idField,
		shp.NumberField("Inst_Year", 4),
		shp.StringField("Material", 8),
	}))

	for _, p := range pipes {
		points := make([]shp.Point, 0, len(p.Coords))
		for _, c := range p.Coords {
			xy := []float64{c[0], c[1]}
			require.NoError(t, sys.FromWGS84(xy, 2))
			points = append(points, shp.Point{X: xy[0], Y: xy[1]})
		}
		row := int(w.Write(shp.NewPolyLine([][]shp.Point{points})))
		require.NoError(t, w.WriteAttribute(row, 0, p.AssetID))
		if p.InstYear != "" {
			require.NoError(t, w.WriteAttribute(row, 1, p.InstYear))
		}
		require.NoError(t, w.WriteAttribute(row, 2, p.Material))
	}
	w.Close()

	// go-shp v0.1.1 writes the table as "<base>dbf".
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}

	require.NoError(t, os.WriteFile(base+".cpg", []byte("UTF-8"), 0o644))
	if !opts.NoPRJ {
		wkt := opts.PRJ
		if wkt == "" {
			var ok bool
			wkt, ok = crs.PRJ(code)
			require.True(t, ok, "no prj for EPSG:%d", code)
		}
		require.NoError(t, os.WriteFile(base+".prj", []byte(wkt), 0o644))
	}
	for name, content := range opts.Extra {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	return base + ".shp"
}

// Projections municipal pipe data commonly ships in.
const (
	// UTM17NPRJ is OGC WKT for WGS 84 / UTM zone 17N with its EPSG authority.
	UTM17NPRJ = `PROJCS["WGS 84 / UTM zone 17N",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],` +
		`AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]],` +
		`PROJECTION["Transverse_Mercator"],PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",-81],` +
		`PARAMETER["scale_factor",0.9996],PARAMETER["false_easting",500000],PARAMETER["false_northing",0],` +
		`UNIT["metre",1,AUTHORITY["EPSG","9001"]],AXIS["Easting",EAST],AXIS["Northing",NORTH],AUTHORITY["EPSG","32617"]]`

	// FloridaEastFeetPRJ is ESRI WKT for NAD83 State Plane Florida East in US
	// survey feet, a transverse Mercator zone without an authority code.
	FloridaEastFeetPRJ = `PROJCS["NAD_1983_StatePlane_Florida_East_FIPS_0901_Feet",GEOGCS["GCS_North_American_1983",` +
		`DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],` +
		`UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",656166.6666666665],` +
		`PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-81.0],PARAMETER["Scale_Factor",0.9999411764705882],` +
		`PARAMETER["Latitude_Of_Origin",24.33333333333333],UNIT["Foot_US",0.3048006096012192]]`

	// FloridaNorthFeetPRJ is ESRI WKT for NAD83 State Plane Florida North in
	// US survey feet, a Lambert conformal conic zone.
	FloridaNorthFeetPRJ = `PROJCS["NAD_1983_StatePlane_Florida_North_FIPS_0903_Feet",GEOGCS["GCS_North_American_1983",` +
		`DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],` +
		`UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",1968500.0],` +
		`PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-84.5],PARAMETER["Standard_Parallel_1",29.58333333333333],` +
		`PARAMETER["Standard_Parallel_2",30.75],PARAMETER["Scale_Factor",1.0],PARAMETER["Latitude_Of_Origin",29.0],` +
		`UNIT["Foot_US",0.3048006096012192]]`
)
