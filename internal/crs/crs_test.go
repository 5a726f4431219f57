package crs

import (
	"testing"

	"github.com/go-spatial/proj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/pipemap/internal/model"
)

func projectedLine(t *testing.T, code proj.EPSGCode, lonlat []float64) *geom.LineString {
	t.Helper()
	xy, err := proj.Convert(code, lonlat)
	require.NoError(t, err)
	return geom.NewLineStringFlat(geom.XY, xy)
}

func mustEPSG(t *testing.T, code int) System {
	t.Helper()
	sys, err := FromEPSG(code)
	require.NoError(t, err)
	return sys
}

func mustDetect(t *testing.T, wkt string) System {
	t.Helper()
	sys, err := Detect(wkt)
	require.NoError(t, err)
	return sys
}

func TestToWGS84_WebMercator(t *testing.T) {
	lonlat := []float64{-80.19, 25.77, -80.18, 25.78}
	c := &model.Collection{
		Kind:   model.KindLine,
		Layout: geom.XY,
		Fields: []model.Field{{Name: "Asset_ID", Type: model.FieldCharacter, Size: 4}},
		Features: []*model.Feature{
			{Geometry: projectedLine(t, proj.EPSG3857, lonlat), Values: []string{"A1"}},
			{Geometry: nil, Values: []string{"A2"}},
		},
	}

	require.NoError(t, ToWGS84(c, mustEPSG(t, 3857)))

	assert.Equal(t, WGS84, c.SRID)
	require.Len(t, c.Features, 2)
	got := c.Features[0].Geometry.FlatCoords()
	require.Len(t, got, 4)
	for i := range lonlat {
		assert.InDelta(t, lonlat[i], got[i], 1e-6)
	}
	assert.Equal(t, []string{"A1"}, c.Features[0].Values)
	assert.Nil(t, c.Features[1].Geometry)
	assert.Equal(t, []string{"A2"}, c.Features[1].Values)
}

func TestToWGS84_KeepsZ(t *testing.T) {
	xy, err := proj.Convert(proj.EPSG3857, []float64{10, 20})
	require.NoError(t, err)
	g := geom.NewPointFlat(geom.XYZ, []float64{xy[0], xy[1], 42})
	c := &model.Collection{Kind: model.KindPoint, Layout: geom.XYZ, Features: []*model.Feature{{Geometry: g}}}

	require.NoError(t, ToWGS84(c, mustEPSG(t, 900913)))

	got := c.Features[0].Geometry.FlatCoords()
	assert.InDelta(t, 10, got[0], 1e-6)
	assert.InDelta(t, 20, got[1], 1e-6)
	assert.Equal(t, 42.0, got[2])
}

func TestToWGS84_AlreadyGeographic(t *testing.T) {
	g := geom.NewPointFlat(geom.XY, []float64{1.5, 2.5})
	c := &model.Collection{Kind: model.KindPoint, Layout: geom.XY, Features: []*model.Feature{{Geometry: g}}}

	require.NoError(t, ToWGS84(c, mustEPSG(t, WGS84)))

	assert.Equal(t, WGS84, c.SRID)
	assert.Equal(t, []float64{1.5, 2.5}, c.Features[0].Geometry.FlatCoords())
}

func TestToWGS84_Unresolved(t *testing.T) {
	_, err := FromEPSG(27700)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EPSG:27700")

	c := &model.Collection{Kind: model.KindPoint, Layout: geom.XY}
	require.Error(t, ToWGS84(c, System{}))
	assert.Equal(t, 0, c.SRID)
}

func TestResolve(t *testing.T) {
	sys, err := Resolve("", 3857)
	require.NoError(t, err)
	assert.Equal(t, 3857, sys.Code)
	assert.False(t, sys.Geographic())

	_, err = Resolve("  ", 0)
	assert.ErrorIs(t, err, ErrUndetected)

	wkt, _ := PRJ(WGS84)
	sys, err = Resolve(wkt, 0)
	require.NoError(t, err)
	assert.Equal(t, WGS84, sys.Code)
	assert.True(t, sys.Geographic())
}

func TestResolve_PRJWinsOverOverride(t *testing.T) {
	wkt, _ := PRJ(WGS84)
	sys, err := Resolve(wkt, 3857)
	require.NoError(t, err)
	assert.Equal(t, WGS84, sys.Code)
	assert.True(t, sys.Geographic())
}

func TestResolve_OverrideWhenPRJUnrecognized(t *testing.T) {
	unknown := `PROJCS["Local grid",PROJECTION["Oblique_Stereographic"],UNIT["metre",1]]`

	_, err := Resolve(unknown, 0)
	assert.ErrorIs(t, err, ErrUndetected)

	sys, err := Resolve(unknown, 32617)
	require.NoError(t, err)
	assert.Equal(t, 32617, sys.Code)
}

const (
	utm17NESRI = `PROJCS["WGS_1984_UTM_Zone_17N",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],` +
		`PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],` +
		`PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-81.0],PARAMETER["Scale_Factor",0.9996],` +
		`PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`

	floridaEastFeet = `PROJCS["NAD_1983_StatePlane_Florida_East_FIPS_0901_Feet",GEOGCS["GCS_North_American_1983",` +
		`DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],` +
		`UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",656166.6666666665],` +
		`PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-81.0],PARAMETER["Scale_Factor",0.9999411764705882],` +
		`PARAMETER["Latitude_Of_Origin",24.33333333333333],UNIT["Foot_US",0.3048006096012192]]`

	floridaEastFeetWKT2 = `PROJCRS["NAD83 / Florida East (ftUS)",BASEGEOGCRS["NAD83",DATUM["North American Datum 1983",` +
		`ELLIPSOID["GRS 1980",6378137,298.257222101,LENGTHUNIT["metre",1]]],PRIMEM["Greenwich",0,ANGLEUNIT["degree",0.0174532925199433]]],` +
		`CONVERSION["SPCS83 Florida East zone (US Survey feet)",METHOD["Transverse Mercator",ID["EPSG",9807]],` +
		`PARAMETER["Latitude of natural origin",24.3333333333333,ANGLEUNIT["degree",0.0174532925199433]],` +
		`PARAMETER["Longitude of natural origin",-81,ANGLEUNIT["degree",0.0174532925199433]],` +
		`PARAMETER["Scale factor at natural origin",0.999941177,SCALEUNIT["unity",1]],` +
		`PARAMETER["False easting",656166.667,LENGTHUNIT["US survey foot",0.304800609601219]],` +
		`PARAMETER["False northing",0,LENGTHUNIT["US survey foot",0.304800609601219]]],` +
		`CS[Cartesian,2],AXIS["easting (X)",east,ORDER[1],LENGTHUNIT["US survey foot",0.304800609601219]],` +
		`AXIS["northing (Y)",north,ORDER[2],LENGTHUNIT["US survey foot",0.304800609601219]],ID["EPSG",2236]]`

	floridaNorthFeet = `PROJCS["NAD_1983_StatePlane_Florida_North_FIPS_0903_Feet",GEOGCS["GCS_North_American_1983",` +
		`DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],` +
		`UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",1968500.0],` +
		`PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-84.5],PARAMETER["Standard_Parallel_1",29.58333333333333],` +
		`PARAMETER["Standard_Parallel_2",30.75],PARAMETER["Scale_Factor",1.0],PARAMETER["Latitude_Of_Origin",29.0],` +
		`UNIT["Foot_US",0.3048006096012192]]`
)

// inversePoint reprojects one stored x/y through sys.
func inversePoint(t *testing.T, sys System, x, y float64) (float64, float64) {
	t.Helper()
	c := &model.Collection{
		Kind:     model.KindPoint,
		Layout:   geom.XY,
		Features: []*model.Feature{{Geometry: geom.NewPointFlat(geom.XY, []float64{x, y})}},
	}
	require.NoError(t, ToWGS84(c, sys))
	got := c.Features[0].Geometry.FlatCoords()
	return got[0], got[1]
}

func TestToWGS84_UTM(t *testing.T) {
	for name, sys := range map[string]System{
		"epsg code":       mustEPSG(t, 32617),
		"esri parameters": mustDetect(t, utm17NESRI),
		"nad83 epsg code": mustEPSG(t, 26917),
	} {
		t.Run(name, func(t *testing.T) {
			lon, lat := inversePoint(t, sys, 500000, 0)
			assert.InDelta(t, -81, lon, 1e-9)
			assert.InDelta(t, 0, lat, 1e-9)

			// Northing of 45N on the central meridian.
			lon, lat = inversePoint(t, sys, 500000, 4982950.400)
			assert.InDelta(t, -81, lon, 1e-9)
			assert.InDelta(t, 45, lat, 1e-6)
		})
	}

	south := mustEPSG(t, 32717)
	lon, lat := inversePoint(t, south, 500000, 10000000)
	assert.InDelta(t, -81, lon, 1e-9)
	assert.InDelta(t, 0, lat, 1e-9)
}

func TestToWGS84_StatePlaneFeet(t *testing.T) {
	for name, wkt := range map[string]string{"esri": floridaEastFeet, "wkt2": floridaEastFeetWKT2} {
		t.Run(name, func(t *testing.T) {
			sys := mustDetect(t, wkt)

			// False easting at the origin latitude.
			lon, lat := inversePoint(t, sys, 656166.6667, 0)
			assert.InDelta(t, -81, lon, 1e-6)
			assert.InDelta(t, 24+1.0/3, lat, 1e-6)

			// 26N on the central meridian, in US survey feet.
			lon, lat = inversePoint(t, sys, 656166.6667, 605690.5435)
			assert.InDelta(t, -81, lon, 1e-6)
			assert.InDelta(t, 26, lat, 1e-6)
		})
	}
}

func TestToWGS84_LambertConformalConic(t *testing.T) {
	sys := mustDetect(t, floridaNorthFeet)

	lon, lat := inversePoint(t, sys, 1968500, 0)
	assert.InDelta(t, -84.5, lon, 1e-9)
	assert.InDelta(t, 29, lat, 1e-9)

	lon, lat = inversePoint(t, sys, 2443296.9357, 366794.5050)
	assert.InDelta(t, -83, lon, 1e-7)
	assert.InDelta(t, 30, lat, 1e-7)
}

func TestFromWGS84_RoundTrip(t *testing.T) {
	for name, sys := range map[string]System{
		"web mercator":  mustEPSG(t, 3857),
		"utm":           mustEPSG(t, 32617),
		"transverse ft": mustDetect(t, floridaEastFeet),
		"lambert ft":    mustDetect(t, floridaNorthFeet),
		"geographic":    mustEPSG(t, WGS84),
	} {
		t.Run(name, func(t *testing.T) {
			lonlat := []float64{-80.19, 25.77, 7, -81.5, 29.9, 8}
			flat := append([]float64(nil), lonlat...)
			require.NoError(t, sys.FromWGS84(flat, 3))
			assert.Equal(t, 7.0, flat[2])

			c := &model.Collection{
				Kind:     model.KindLine,
				Layout:   geom.XYZ,
				Features: []*model.Feature{{Geometry: geom.NewLineStringFlat(geom.XYZ, flat)}},
			}
			require.NoError(t, ToWGS84(c, sys))
			got := c.Features[0].Geometry.FlatCoords()
			for i := range lonlat {
				assert.InDelta(t, lonlat[i], got[i], 1e-7)
			}
		})
	}
}

func TestSystemString(t *testing.T) {
	assert.Equal(t, "EPSG:32617", mustEPSG(t, 32617).String())
	assert.Equal(t, "NAD_1983_StatePlane_Florida_East_FIPS_0901_Feet", mustDetect(t, floridaEastFeet).String())
	assert.Equal(t, "EPSG:2236", mustDetect(t, floridaEastFeetWKT2).String())
	assert.Equal(t, "unknown", System{}.String())
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		wkt  string
		want int
	}{
		{
			name: "esri wgs84",
			wkt:  geogWGS84,
			want: 4326,
		},
		{
			name: "ogc wgs84 with authority",
			wkt:  `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]]`,
			want: 4326,
		},
		{
			name: "esri web mercator",
			wkt:  prjText[3857],
			want: 3857,
		},
		{
			name: "ogc pseudo mercator",
			wkt: `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],` +
				`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]],` +
				`PROJECTION["Mercator_1SP"],PARAMETER["central_meridian",0],UNIT["metre",1],AUTHORITY["EPSG","3857"]]`,
			want: 3857,
		},
		{
			name: "projected without authority ignores nested geographic authority",
			wkt: `PROJCS["WGS 84 / World Mercator",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],` +
				`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]],PROJECTION["Mercator_1SP"],UNIT["metre",1]]`,
			want: 3395,
		},
		{
			name: "equidistant cylindrical",
			wkt:  prjText[4087],
			want: 4087,
		},
		{
			name: "utm with authority",
			wkt:  `PROJCS["NAD83 / UTM zone 15N",GEOGCS["NAD83",DATUM["North_American_Datum_1983",SPHEROID["GRS 1980",6378137,298.257222101]]],PROJECTION["Transverse_Mercator"],UNIT["metre",1],AUTHORITY["EPSG","26915"]]`,
			want: 26915,
		},
		{
			name: "nad83 geographic",
			wkt:  `GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`,
			want: 4326,
		},
		{
			name: "wkt2 with id",
			wkt:  `PROJCRS["WGS 84 / Pseudo-Mercator",BASEGEOGCRS["WGS 84",DATUM["World Geodetic System 1984",ELLIPSOID["WGS 84",6378137,298.257223563]]],CONVERSION["Popular Visualisation Pseudo-Mercator",METHOD["Popular Visualisation Pseudo Mercator"]],ID["EPSG",3857]]`,
			want: 3857,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.wkt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Code)
		})
	}
}

func TestDetect_Errors(t *testing.T) {
	for _, wkt := range []string{
		`PROJCS["NAD83 / UTM zone 15N",PROJECTION["Transverse_Mercator"],UNIT["metre",1]]`,
		`GEOGCS["WGS 84"`,
		`[]`,
		`LOCAL_CS["engineering"]`,
	} {
		_, err := Detect(wkt)
		assert.ErrorIs(t, err, ErrUndetected, wkt)
	}
}

func TestSupportedAndCanonical(t *testing.T) {
	assert.True(t, Supported(4326))
	assert.True(t, Supported(4269))
	assert.True(t, Supported(102100))
	assert.True(t, Supported(3395))
	assert.True(t, Supported(32617))
	assert.True(t, Supported(26915))
	assert.False(t, Supported(32661))
	assert.False(t, Supported(27700))
	assert.Equal(t, 3857, Canonical(900913))
	assert.Equal(t, 27700, Canonical(27700))
	assert.Equal(t, "EPSG:4326", String(WGS84))

	_, ok := PRJ(102100)
	assert.True(t, ok)
	_, ok = PRJ(27700)
	assert.False(t, ok)
}
