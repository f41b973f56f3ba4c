package geodesy

import "math"

// UTM projection constants.
const (
	utmScale         = 0.9996
	utmFalseEasting  = 500000.0
	utmFalseNorthing = 10000000.0
)

// utmZoneNumber returns the 6-degree UTM zone for a longitude. The
// Norway and Svalbard exceptions are not applied.
func utmZoneNumber(lonDeg float64) int {
	zone := int((lonDeg+180)/6) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return zone
}

// utmZone holds the precomputed Krüger series terms for one zone. The
// forward projection follows the standard flattening-series transverse
// Mercator formulas and is accurate to centimeters inside the zone.
type utmZone struct {
	lon0Rad float64
	north   bool
	bigA    float64
	sigma   float64
	alpha   [3]float64
}

func newUTMZone(zone int, north bool) utmZone {
	n := wgs84F / (2 - wgs84F)
	n2 := n * n
	n3 := n2 * n
	return utmZone{
		lon0Rad: float64((zone-1)*6-180+3) * math.Pi / 180,
		north:   north,
		bigA:    wgs84A / (1 + n) * (1 + n2/4 + n2*n2/64),
		sigma:   2 * math.Sqrt(n) / (1 + n),
		alpha: [3]float64{
			n/2 - 2*n2/3 + 5*n3/16,
			13*n2/48 - 3*n3/5,
			61 * n3 / 240,
		},
	}
}

// forward projects a geodetic position to absolute UTM easting and
// northing in meters.
func (z utmZone) forward(latDeg, lonDeg float64) (easting, northing float64) {
	phi := latDeg * math.Pi / 180
	dLam := lonDeg*math.Pi/180 - z.lon0Rad

	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - z.sigma*math.Atanh(z.sigma*sinPhi))
	xiP := math.Atan2(t, math.Cos(dLam))
	etaP := math.Atanh(math.Sin(dLam) / math.Sqrt(1+t*t))

	xi, eta := xiP, etaP
	for j, a := range z.alpha {
		k := 2 * float64(j+1)
		xi += a * math.Sin(k*xiP) * math.Cosh(k*etaP)
		eta += a * math.Cos(k*xiP) * math.Sinh(k*etaP)
	}

	easting = utmFalseEasting + utmScale*z.bigA*eta
	northing = utmScale * z.bigA * xi
	if !z.north {
		northing += utmFalseNorthing
	}
	return easting, northing
}
