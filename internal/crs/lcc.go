package crs

import (
	"math"

	"github.com/go-spatial/proj/core"
	"github.com/go-spatial/proj/merror"
	"github.com/go-spatial/proj/support"
)

// go-spatial/proj ships no Lambert Conformal Conic, which most State Plane
// zones use, so it is registered here alongside the library's operations.
func init() {
	core.RegisterConvertLPToXY("lcc",
		"Lambert Conformal Conic",
		"\n\tConic, Sph&Ell\n\tlat_1= and lat_2= or lat_0",
		newLCC,
	)
}

const lccEps = 1e-10

type lcc struct {
	core.Operation
	ellips bool
	n      float64
	c      float64
	rho0   float64
}

func newLCC(sys *core.System, desc *core.OperationDescription) (core.IConvertLPToXY, error) {
	op := &lcc{}
	op.System = sys
	op.Description = desc
	if err := op.setup(); err != nil {
		return nil, err
	}
	return op, nil
}

func (op *lcc) setup() error {
	P := op.System
	PE := P.Ellipsoid
	ps := P.ProjString

	lat1, ok := ps.GetAsFloat("lat_1")
	if !ok {
		lat1 = support.RToDD(P.Phi0)
	}
	lat2, ok := ps.GetAsFloat("lat_2")
	if !ok {
		lat2 = lat1
	}
	phi1, phi2 := support.DDToR(lat1), support.DDToR(lat2)
	if math.Abs(phi1+phi2) < lccEps {
		return merror.New(merror.ConicLatEqual)
	}

	sinphi, cosphi := math.Sincos(phi1)
	op.n = sinphi
	secant := math.Abs(phi1-phi2) >= lccEps
	op.ellips = PE.Es != 0

	if op.ellips {
		m1 := support.Msfn(sinphi, cosphi, PE.Es)
		ml1 := support.Tsfn(phi1, sinphi, PE.E)
		if secant {
			sin2, cos2 := math.Sincos(phi2)
			op.n = math.Log(m1 / support.Msfn(sin2, cos2, PE.Es))
			op.n /= math.Log(ml1 / support.Tsfn(phi2, sin2, PE.E))
		}
		op.c = m1 * math.Pow(ml1, -op.n) / op.n
		op.rho0 = 0
		if math.Abs(math.Abs(P.Phi0)-support.PiOverTwo) >= lccEps {
			op.rho0 = op.c * math.Pow(support.Tsfn(P.Phi0, math.Sin(P.Phi0), PE.E), op.n)
		}
		return nil
	}

	if secant {
		op.n = math.Log(cosphi/math.Cos(phi2)) /
			math.Log(math.Tan(support.PiOverFour+.5*phi2)/math.Tan(support.PiOverFour+.5*phi1))
	}
	op.c = cosphi * math.Pow(math.Tan(support.PiOverFour+.5*phi1), op.n) / op.n
	op.rho0 = 0
	if math.Abs(math.Abs(P.Phi0)-support.PiOverTwo) >= lccEps {
		op.rho0 = op.c * math.Pow(math.Tan(support.PiOverFour+.5*P.Phi0), -op.n)
	}
	return nil
}

// Forward projects radians to plane coordinates in units of the semi-major axis.
func (op *lcc) Forward(lp *core.CoordLP) (*core.CoordXY, error) {
	P := op.System
	PE := P.Ellipsoid

	var rho float64
	if math.Abs(math.Abs(lp.Phi)-support.PiOverTwo) < lccEps {
		if lp.Phi*op.n <= 0 {
			return nil, merror.New(merror.ToleranceCondition)
		}
	} else if op.ellips {
		rho = op.c * math.Pow(support.Tsfn(lp.Phi, math.Sin(lp.Phi), PE.E), op.n)
	} else {
		rho = op.c * math.Pow(math.Tan(support.PiOverFour+.5*lp.Phi), -op.n)
	}

	lam := lp.Lam * op.n
	return &core.CoordXY{
		X: P.K0 * rho * math.Sin(lam),
		Y: P.K0 * (op.rho0 - rho*math.Cos(lam)),
	}, nil
}

// Inverse maps plane coordinates in units of the semi-major axis to radians.
func (op *lcc) Inverse(xy *core.CoordXY) (*core.CoordLP, error) {
	P := op.System
	PE := P.Ellipsoid

	x := xy.X / P.K0
	y := op.rho0 - xy.Y/P.K0
	rho := math.Hypot(x, y)
	if rho == 0 {
		phi := support.PiOverTwo
		if op.n < 0 {
			phi = -phi
		}
		return &core.CoordLP{Lam: 0, Phi: phi}, nil
	}
	if op.n < 0 {
		rho, x, y = -rho, -x, -y
	}

	lp := &core.CoordLP{Lam: math.Atan2(x, y) / op.n}
	if op.ellips {
		phi, err := support.Phi2(math.Pow(rho/op.c, 1/op.n), PE.E)
		if err != nil {
			return nil, err
		}
		lp.Phi = phi
	} else {
		lp.Phi = 2*math.Atan(math.Pow(op.c/rho, 1/op.n)) - support.PiOverTwo
	}
	return lp, nil
}
