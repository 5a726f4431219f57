package crs

import (
	"strconv"
	"strings"

	"github.com/go-spatial/proj/core"
	"github.com/go-spatial/proj/support"
	"github.com/rotisserie/eris"

	// registers etmerc, aea and the other go-spatial operations
	_ "github.com/go-spatial/proj/operations"
)

type ellipsoid struct {
	a, rf float64 // semi-major axis in metres, inverse flattening (0 for a sphere)
}

var (
	ellipsoidWGS84 = ellipsoid{a: 6378137, rf: 298.257223563}
	ellipsoidGRS80 = ellipsoid{a: 6378137, rf: 298.257222101}
)

// projParams describes a projected CRS. Angles are degrees and offsets are
// metres; toMeter scales stored ordinates into metres.
type projParams struct {
	method     string
	lon0, lat0 float64
	lat1, lat2 float64
	k0         float64
	x0, y0     float64
	ellps      ellipsoid
	toMeter    float64
}

func utm(zone int, south bool, e ellipsoid) projParams {
	p := projParams{
		method:  "etmerc",
		lon0:    float64(zone)*6 - 183,
		k0:      0.9996,
		x0:      500000,
		ellps:   e,
		toMeter: 1,
	}
	if south {
		p.y0 = 10000000
	}
	return p
}

// projString renders p for go-spatial/proj. Its core reads lon_0 and lat_0
// as radians while the conic operations read lat_1 and lat_2 as degrees.
func (p projParams) projString() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	parts := []string{
		"+proj=" + p.method,
		"+lon_0=" + f(support.DDToR(p.lon0)),
		"+lat_0=" + f(support.DDToR(p.lat0)),
		"+k_0=" + f(p.k0),
		"+x_0=" + f(p.x0),
		"+y_0=" + f(p.y0),
	}
	if p.method == "lcc" || p.method == "aea" {
		parts = append(parts, "+lat_1="+f(p.lat1), "+lat_2="+f(p.lat2))
	}
	if p.ellps.rf == 0 {
		parts = append(parts, "+R="+f(p.ellps.a))
	} else {
		parts = append(parts, "+a="+f(p.ellps.a), "+rf="+f(p.ellps.rf))
	}
	return strings.Join(parts, " ")
}

// projection is a ready-to-run go-spatial operation. Operations keep scratch
// state, so a projection must not be shared between goroutines.
type projection struct {
	op      core.IConvertLPToXY
	toMeter float64
}

func (p projParams) build() (*projection, error) {
	if p.k0 <= 0 {
		p.k0 = 1
	}
	if p.toMeter <= 0 {
		p.toMeter = 1
	}
	ps, err := support.NewProjString(p.projString())
	if err != nil {
		return nil, eris.Wrap(err, "crs: projection string")
	}
	_, op, err := core.NewSystem(ps)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: %s", p.method)
	}
	conv, ok := op.(core.IConvertLPToXY)
	if !ok {
		return nil, eris.Errorf("crs: %s is not a lon/lat projection", p.method)
	}
	return &projection{op: conv, toMeter: p.toMeter}, nil
}

// inverse turns projected x/y pairs in stored units into lon/lat degrees.
func (p *projection) inverse(xy []float64) ([]float64, error) {
	out := make([]float64, len(xy))
	for i := 0; i+1 < len(xy); i += 2 {
		lp, err := p.op.Inverse(&core.CoordXY{X: xy[i] * p.toMeter, Y: xy[i+1] * p.toMeter})
		if err != nil {
			return nil, err
		}
		out[i] = support.RToDD(lp.Lam)
		out[i+1] = support.RToDD(lp.Phi)
	}
	return out, nil
}

// forward turns lon/lat pairs into projected x/y in stored units.
func (p *projection) forward(lonlat []float64) ([]float64, error) {
	out := make([]float64, len(lonlat))
	for i := 0; i+1 < len(lonlat); i += 2 {
		xy, err := p.op.Forward(&core.CoordLP{Lam: support.DDToR(lonlat[i]), Phi: support.DDToR(lonlat[i+1])})
		if err != nil {
			return nil, err
		}
		out[i] = xy.X / p.toMeter
		out[i+1] = xy.Y / p.toMeter
	}
	return out, nil
}
