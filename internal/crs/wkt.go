package crs

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const geogWGS84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// prjText holds ESRI-flavoured WKT for the codes this package can write.
var prjText = map[int]string{
	WGS84: geogWGS84,
	3857: `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",` + geogWGS84 +
		`,PROJECTION["Mercator_Auxiliary_Sphere"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],` +
		`PARAMETER["Central_Meridian",0.0],PARAMETER["Standard_Parallel_1",0.0],PARAMETER["Auxiliary_Sphere_Type",0.0],UNIT["Meter",1.0]]`,
	3395: `PROJCS["WGS_1984_World_Mercator",` + geogWGS84 +
		`,PROJECTION["Mercator"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],` +
		`PARAMETER["Central_Meridian",0.0],PARAMETER["Standard_Parallel_1",0.0],UNIT["Meter",1.0]]`,
	4087: `PROJCS["WGS_1984_World_Equidistant_Cylindrical",` + geogWGS84 +
		`,PROJECTION["Equidistant_Cylindrical"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],` +
		`PARAMETER["Central_Meridian",0.0],PARAMETER["Standard_Parallel_1",0.0],UNIT["Meter",1.0]]`,
}

// PRJ returns .prj WKT for code.
func PRJ(code int) (string, bool) {
	s, ok := prjText[Canonical(code)]
	return s, ok
}

// node is one parsed WKT element: KEYWORD["name", children...].
type node struct {
	keyword  string
	args     []string
	children []*node
}

// Detect resolves the System described by a .prj WKT string. Any geographic
// CRS is taken as WGS84. A projected CRS is resolved from its root
// AUTHORITY/ID when the code is known, then from its projection parameters,
// then by recognizing the Mercator family by name.
func Detect(wkt string) (System, error) {
	root, err := parseWKT(wkt)
	if err != nil {
		return System{}, err
	}
	code := root.authority()

	switch root.keyword {
	case "GEOGCS", "GEOGCRS", "GEODCRS":
		if name := root.name(); !isWGS84Name(name) {
			zap.L().Debug("crs: treating geographic CRS as WGS84", zap.String("name", name))
		}
		if code == 0 || !geographic[code] {
			code = WGS84
		}
		return System{Code: code, Name: root.name(), kind: kindGeographic}, nil
	case "PROJCS", "PROJCRS":
	default:
		return System{}, eris.Wrapf(ErrUndetected, "crs: unexpected WKT root %q", root.keyword)
	}

	if code != 0 {
		if sys, err := FromEPSG(code); err == nil {
			sys.Name = root.name()
			return sys, nil
		}
	}
	if params, ok, err := projectionParams(root); ok {
		if err != nil {
			return System{}, eris.Wrapf(ErrUndetected, "crs: projection %q: %v", root.name(), err)
		}
		return System{Code: code, Name: root.name(), kind: kindProjected, params: params}, nil
	}
	if c := projectedCode(root); c != 0 {
		sys, _ := FromEPSG(c)
		sys.Name = root.name()
		return sys, nil
	}
	if code != 0 {
		return System{}, eris.Wrapf(ErrUndetected, "crs: reprojection from EPSG:%d is not supported", code)
	}
	return System{}, eris.Wrapf(ErrUndetected, "crs: unrecognized projection %q", root.name())
}

// authority returns the EPSG code of a root-level AUTHORITY or ID, or 0.
func (n *node) authority() int {
	for _, ch := range n.children {
		if ch.keyword != "AUTHORITY" && ch.keyword != "ID" {
			continue
		}
		if len(ch.args) >= 2 && strings.EqualFold(ch.args[0], "EPSG") {
			if code, err := strconv.Atoi(ch.args[1]); err == nil {
				return code
			}
		}
	}
	return 0
}

func (n *node) name() string {
	if len(n.args) == 0 {
		return ""
	}
	return n.args[0]
}

func (n *node) child(keyword string) *node {
	for _, ch := range n.children {
		if ch.keyword == keyword {
			return ch
		}
	}
	return nil
}

// find returns the first node below n, depth first, whose keyword is one of
// keywords.
func (n *node) find(keywords ...string) *node {
	for _, ch := range n.children {
		for _, k := range keywords {
			if ch.keyword == k {
				return ch
			}
		}
		if got := ch.find(keywords...); got != nil {
			return got
		}
	}
	return nil
}

// number parses args[i] as a float.
func (n *node) number(i int) (float64, bool) {
	if n == nil || i >= len(n.args) {
		return 0, false
	}
	v, err := strconv.ParseFloat(n.args[i], 64)
	return v, err == nil
}

// unitFactor returns the conversion factor of the first of keywords directly
// under n, or 0 when there is none.
func (n *node) unitFactor(keywords ...string) float64 {
	if n == nil {
		return 0
	}
	for _, ch := range n.children {
		for _, k := range keywords {
			if ch.keyword == k {
				if f, ok := ch.number(1); ok && f > 0 {
					return f
				}
			}
		}
	}
	return 0
}

// methodOf returns the projection method name of a projected CRS.
func methodOf(root *node) string {
	if p := root.child("PROJECTION"); p != nil {
		return p.name()
	}
	if conv := root.child("CONVERSION"); conv != nil {
		if m := conv.child("METHOD"); m != nil {
			return m.name()
		}
	}
	return ""
}

// operationFor maps a WKT method name onto a go-spatial operation id.
func operationFor(method string) string {
	switch squash(method) {
	case "transversemercator", "gausskruger":
		return "etmerc"
	case "lambertconformalconic", "lambertconformalconic1sp", "lambertconformalconic2sp",
		"lambertconicconformal1sp", "lambertconicconformal2sp":
		return "lcc"
	case "albers", "albersconicequalarea", "albersequalarea":
		return "aea"
	}
	return ""
}

// Parameter names as written by ESRI, OGC WKT1 and WKT2, squashed.
var (
	paramLon0 = []string{"centralmeridian", "longitudeofcenter", "longitudeofcentre", "longitudeoforigin",
		"longitudeofnaturalorigin", "longitudeoffalseorigin", "longitudeofprojectioncentre"}
	paramLat0 = []string{"latitudeoforigin", "latitudeofcenter", "latitudeofcentre",
		"latitudeofnaturalorigin", "latitudeoffalseorigin", "latitudeofprojectioncentre"}
	paramK0   = []string{"scalefactor", "scalefactoratnaturalorigin"}
	paramX0   = []string{"falseeasting", "eastingatfalseorigin", "eastingatprojectioncentre"}
	paramY0   = []string{"falsenorthing", "northingatfalseorigin", "northingatprojectioncentre"}
	paramLat1 = []string{"standardparallel1", "latitudeof1ststandardparallel"}
	paramLat2 = []string{"standardparallel2", "latitudeof2ndstandardparallel"}
)

const degree = math.Pi / 180

// projectionParams reads the parameters of a projected CRS whose method has a
// go-spatial operation. ok is false when the method is not one of those.
func projectionParams(root *node) (projParams, bool, error) {
	op := operationFor(methodOf(root))
	if op == "" {
		return projParams{}, false, nil
	}

	spheroid := root.find("SPHEROID", "ELLIPSOID")
	a, okA := spheroid.number(1)
	rf, okRf := spheroid.number(2)
	if !okA || !okRf || a <= 0 {
		return projParams{}, true, eris.New("no ellipsoid")
	}

	// Linear values default to the CRS unit, angles to the geographic unit.
	linear := root.unitFactor("UNIT", "LENGTHUNIT")
	if linear == 0 {
		if axis := root.child("AXIS"); axis != nil {
			linear = axis.unitFactor("LENGTHUNIT", "UNIT")
		}
	}
	if linear == 0 {
		linear = 1
	}
	angular := degree
	if geog := root.find("GEOGCS", "BASEGEOGCRS", "BASEGEODCRS"); geog != nil {
		if f := geog.unitFactor("UNIT", "ANGLEUNIT"); f != 0 {
			angular = f
		}
	}

	holder := root
	if conv := root.child("CONVERSION"); conv != nil {
		holder = conv
	}
	values := map[string]float64{}
	for _, ch := range holder.children {
		if ch.keyword != "PARAMETER" {
			continue
		}
		v, ok := ch.number(1)
		if !ok {
			return projParams{}, true, eris.Errorf("parameter %q is not a number", ch.name())
		}
		values[squash(ch.name())] = v
		if f := ch.unitFactor("LENGTHUNIT"); f != 0 {
			values[squash(ch.name())+"@m"] = v * f
		}
		if f := ch.unitFactor("ANGLEUNIT"); f != 0 {
			values[squash(ch.name())+"@deg"] = v * f / degree
		}
	}
	lookup := func(names []string, suffix string, scale float64) (float64, bool) {
		for _, name := range names {
			if v, ok := values[name+suffix]; ok {
				return v, true
			}
		}
		for _, name := range names {
			if v, ok := values[name]; ok {
				return v * scale, true
			}
		}
		return 0, false
	}
	angle := func(names []string) (float64, bool) { return lookup(names, "@deg", angular/degree) }
	length := func(names []string) (float64, bool) { return lookup(names, "@m", linear) }

	p := projParams{
		method:  op,
		k0:      1,
		ellps:   ellipsoid{a: a, rf: rf},
		toMeter: linear,
	}
	p.lon0, _ = angle(paramLon0)
	p.lat0, _ = angle(paramLat0)
	p.x0, _ = length(paramX0)
	p.y0, _ = length(paramY0)
	if k, ok := lookup(paramK0, "", 1); ok && k > 0 {
		p.k0 = k
	}

	lat1, ok1 := angle(paramLat1)
	lat2, ok2 := angle(paramLat2)
	switch {
	case !ok1:
		lat1, lat2 = p.lat0, p.lat0
	case !ok2:
		lat2 = lat1
	}
	p.lat1, p.lat2 = lat1, lat2
	return p, true, nil
}

func projectedCode(root *node) int {
	name := squash(root.name())
	method := squash(methodOf(root))

	switch {
	case strings.Contains(name, "pseudomercator"),
		strings.Contains(name, "webmercator"),
		strings.Contains(method, "mercatorauxiliarysphere"),
		strings.Contains(method, "popularvisualisation"):
		return 3857
	case strings.Contains(name, "worldmercator"),
		method == "mercator", method == "mercator1sp":
		return 3395
	case strings.Contains(method, "equidistantcylindrical"),
		strings.Contains(method, "platecarree"),
		strings.Contains(method, "equirectangular"):
		return 4087
	}
	return 0
}

// squash lowercases s and drops separators so "WGS 84 / Pseudo-Mercator" and
// "WGS_1984_Pseudo_Mercator" compare alike.
func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isWGS84Name(name string) bool {
	s := squash(name)
	return strings.Contains(s, "wgs84") || strings.Contains(s, "wgs1984")
}

// parseWKT parses WKT1 or WKT2 into a tree. Both [] and () delimiters are
// accepted.
func parseWKT(s string) (*node, error) {
	p := &wktParser{src: strings.TrimSpace(s)}
	n, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	return n, nil
}

type wktParser struct {
	src string
	pos int
}

func (p *wktParser) skipSpace() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *wktParser) parseNode() (*node, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isKeywordByte(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return nil, eris.Wrapf(ErrUndetected, "crs: malformed WKT at offset %d", p.pos)
	}
	n := &node{keyword: strings.ToUpper(p.src[start:p.pos])}

	p.skipSpace()
	if p.pos >= len(p.src) || (p.src[p.pos] != '[' && p.src[p.pos] != '(') {
		return n, nil
	}
	p.pos++

	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, eris.Wrap(ErrUndetected, "crs: unterminated WKT")
		}
		switch c := p.src[p.pos]; {
		case c == ']' || c == ')':
			p.pos++
			return n, nil
		case c == ',':
			p.pos++
		case c == '"':
			end := strings.IndexByte(p.src[p.pos+1:], '"')
			if end < 0 {
				return nil, eris.Wrap(ErrUndetected, "crs: unterminated WKT string")
			}
			n.args = append(n.args, p.src[p.pos+1:p.pos+1+end])
			p.pos += end + 2
		case isKeywordByte(c) && !isNumberStart(c):
			child, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, child)
		default:
			start := p.pos
			for p.pos < len(p.src) && !strings.ContainsRune(",])( \t\r\n", rune(p.src[p.pos])) {
				p.pos++
			}
			if p.pos == start {
				return nil, eris.Wrapf(ErrUndetected, "crs: unexpected %q in WKT", c)
			}
			n.args = append(n.args, p.src[start:p.pos])
		}
	}
}

func isKeywordByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func isNumberStart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}
