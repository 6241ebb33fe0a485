package projection

import (
	"fmt"
	"math"
)

const (
	inverseIterations = 15
	convergence       = 1e-12
)

// Projection converts between geographic degrees and projected meters.
type Projection interface {
	Forward(lon, lat float64) (x, y float64, err error)
	Inverse(x, y float64) (lon, lat float64, err error)
}

// Stereographic is an ellipsoidal polar stereographic projection with an
// optional latitude of true scale (Snyder, Map Projections, ch. 21).
type Stereographic struct {
	params Params
	e      float64 // first eccentricity
	akm1   float64 // scaled radius factor at the latitude of true scale
	south  bool
	lon0   float64 // radians
}

// New parses def and builds the projection.
func New(def string) (*Stereographic, error) {
	p, err := ParseProjDef(def)
	if err != nil {
		return nil, err
	}
	return NewFromParams(p), nil
}

// NewFromParams builds the projection from already parsed parameters.
func NewFromParams(p Params) *Stereographic {
	s := &Stereographic{
		params: p,
		south:  p.Lat0 < 0,
		lon0:   degToRad(p.Lon0),
	}
	if p.A != p.B {
		s.e = math.Sqrt(1 - (p.B*p.B)/(p.A*p.A))
	}

	phits := math.Abs(degToRad(p.LatTS))
	if math.Abs(phits-math.Pi/2) < 1e-10 {
		e := s.e
		s.akm1 = 2 * p.K0 / math.Sqrt(math.Pow(1+e, 1+e)*math.Pow(1-e, 1-e))
	} else {
		sinTS := math.Sin(phits)
		s.akm1 = math.Cos(phits) / tsfn(phits, sinTS, s.e)
		es := s.e * sinTS
		s.akm1 /= math.Sqrt(1 - es*es)
	}
	return s
}

// Params returns the parsed projection parameters.
func (s *Stereographic) Params() Params { return s.params }

// Forward projects geographic degrees to meters.
func (s *Stereographic) Forward(lon, lat float64) (float64, float64, error) {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.Abs(lat) > 90 {
		return 0, 0, fmt.Errorf("%w: lon=%g lat=%g", ErrOutOfDomain, lon, lat)
	}
	phi := degToRad(lat)
	lam := adjustLon(degToRad(lon) - s.lon0)

	sinLam, cosLam := math.Sincos(lam)
	sinPhi := math.Sin(phi)
	if s.south {
		phi, cosLam, sinPhi = -phi, -cosLam, -sinPhi
	}

	if math.Abs(phi+math.Pi/2) < 1e-12 {
		return 0, 0, fmt.Errorf("%w: opposite pole", ErrOutOfDomain)
	}
	r := s.akm1 * tsfn(phi, sinPhi, s.e)
	x := r * sinLam
	y := -r * cosLam

	return s.params.A*x + s.params.X0, s.params.A*y + s.params.Y0, nil
}

// Inverse converts meters back to geographic degrees.
func (s *Stereographic) Inverse(x, y float64) (float64, float64, error) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, 0, fmt.Errorf("%w: x=%g y=%g", ErrOutOfDomain, x, y)
	}
	x = (x - s.params.X0) / s.params.A
	y = (y - s.params.Y0) / s.params.A
	if !s.south {
		y = -y
	}

	rho := math.Hypot(x, y)
	tp := -rho / s.akm1
	phiL := math.Pi/2 - 2*math.Atan(tp)
	halfE := -0.5 * s.e

	for range inverseIterations {
		es := s.e * math.Sin(phiL)
		phi := 2*math.Atan(tp*math.Pow((1+es)/(1-es), halfE)) + math.Pi/2
		if math.Abs(phiL-phi) < convergence {
			if s.south {
				phi = -phi
			}
			lam := 0.0
			if x != 0 || y != 0 {
				lam = math.Atan2(x, y)
			}
			return radToDeg(adjustLon(lam + s.lon0)), radToDeg(phi), nil
		}
		phiL = phi
	}
	return 0, 0, fmt.Errorf("%w: inverse did not converge", ErrOutOfDomain)
}

// tsfn is Snyder's t function (15-9).
func tsfn(phi, sinPhi, e float64) float64 {
	es := e * sinPhi
	return math.Tan(0.5*(math.Pi/2-phi)) / math.Pow((1-es)/(1+es), 0.5*e)
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

func adjustLon(lon float64) float64 {
	for lon > math.Pi {
		lon -= 2 * math.Pi
	}
	for lon < -math.Pi {
		lon += 2 * math.Pi
	}
	return lon
}
