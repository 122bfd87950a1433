package igrf

import (
	"math"
)

const (
	// RefRadius is the reference radius of the spherical-harmonic
	// expansion, in km.
	RefRadius = 6371.2
	// WGS84 ellipsoid semi-axes, in km.
	wgs84A = 6378.137
	wgs84B = 6356.752

	// poleGuard keeps the colatitude away from the poles, where the east
	// component's 1/sin(theta) factor is singular.
	poleGuard = 1e-8
)

// Field is the main field at one point, in geodetic components.
type Field struct {
	// D is the declination and I the inclination, in degrees.
	D, I float64
	// F is the total intensity and H the horizontal intensity, in nT.
	F, H float64
	// X, Y and Z are the north, east and down components, in nT.
	X, Y, Z float64
}

// Geocentric converts a geodetic colatitude (radians) and altitude above the
// WGS84 ellipsoid (km) into a geocentric colatitude and radius (km). sd and
// cd are the sine and cosine of the angle between the two verticals, used to
// rotate field components back into the geodetic frame.
func Geocentric(colat, alt float64) (gcColat, r, sd, cd float64) {
	ct, st := math.Cos(colat), math.Sin(colat)
	a2, b2 := wgs84A*wgs84A, wgs84B*wgs84B

	one := a2 * st * st
	two := b2 * ct * ct
	three := one + two
	rho := math.Sqrt(three)

	r = math.Sqrt(alt*(alt+2*rho) + (a2*one+b2*two)/three)
	cd = (alt + rho) / r
	sd = (a2 - b2) / rho * ct * st / r

	gcColat = math.Atan2(st*cd+ct*sd, ct*cd-st*sd)
	return gcColat, r, sd, cd
}

// Evaluate returns the field at a geodetic latitude and longitude (degrees),
// an altitude above the WGS84 ellipsoid (km) and a decimal year. It fails
// with a *RangeError if the date is outside the model's span.
func (m *Model) Evaluate(lat, lon, alt, year float64) (Field, error) {
	c, err := m.Coefficients(year)
	if err != nil {
		return Field{}, err
	}
	return c.Evaluate(lat, lon, alt), nil
}

// Evaluate returns the field of the coefficients at a geodetic latitude and
// longitude (degrees) and altitude above the WGS84 ellipsoid (km).
func (c *Coeffs) Evaluate(lat, lon, alt float64) Field {
	colat := (90 - lat) * math.Pi / 180
	theta, r, sd, cd := Geocentric(colat, alt)
	theta = math.Max(poleGuard, math.Min(math.Pi-poleGuard, theta))
	phi := lon * math.Pi / 180

	leg := NewLegendre(c.Nmax)
	leg.Compute(theta)
	st := math.Sin(theta)

	cosm := make([]float64, c.Nmax+1)
	sinm := make([]float64, c.Nmax+1)
	for k := range cosm {
		cosm[k], sinm[k] = math.Cos(float64(k)*phi), math.Sin(float64(k)*phi)
	}

	x, y, z := 0.0, 0.0, 0.0
	ratio := RefRadius / r
	rn := ratio * ratio
	for n := 1; n <= c.Nmax; n++ {
		rn *= ratio
		sx, sy, sz := 0.0, 0.0, 0.0
		for k := 0; k <= n; k++ {
			g, h := c.At(n, k)
			p, dp := leg.At(n, k)
			gh := g*cosm[k] + h*sinm[k]
			sx += gh * dp
			sy += float64(k) * (g*sinm[k] - h*cosm[k]) * p
			sz += gh * p
		}
		x += rn * sx
		y += rn * sy / st
		z -= rn * float64(n+1) * sz
	}

	// Rotate from geocentric to geodetic components.
	x, z = x*cd+z*sd, z*cd-x*sd

	return components(x, y, z)
}

func components(x, y, z float64) Field {
	h := math.Hypot(x, y)
	return Field{
		D: math.Atan2(y, x) * 180 / math.Pi,
		I: math.Atan2(z, h) * 180 / math.Pi,
		F: math.Sqrt(h*h + z*z),
		H: h,
		X: x, Y: y, Z: z,
	}
}
