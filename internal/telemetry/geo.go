package telemetry

import "math"

// EarthRadius is the WGS-84 equatorial radius in meters
const EarthRadius = 6378137.0

// LocalProjection maps GPS coordinates onto a flat east/north plane in meters
// around a reference fix. It is an equirectangular approximation, good enough
// for the few kilometers a flight covers.
type LocalProjection struct {
	lat0 float64 // radians
	lon0 float64 // radians
	cos0 float64
}

// NewLocalProjection creates a projection centered on the given fix in degrees
func NewLocalProjection(lat, lon float64) *LocalProjection {
	lat0 := lat * math.Pi / 180
	return &LocalProjection{
		lat0: lat0,
		lon0: lon * math.Pi / 180,
		cos0: math.Cos(lat0),
	}
}

// Project returns east and north offsets in meters
func (p *LocalProjection) Project(lat, lon float64) (east, north float64) {
	east = (lon*math.Pi/180 - p.lon0) * EarthRadius * p.cos0
	north = (lat*math.Pi/180 - p.lat0) * EarthRadius
	return east, north
}

// ProjectTable projects the latitude/longitude columns of a GPS table around
// its first fix.
func ProjectTable(t *Table) (east, north []float64, err error) {
	lat, err := t.Column(LatitudeColumn)
	if err != nil {
		return nil, nil, err
	}
	lon, err := t.Column(LongitudeColumn)
	if err != nil {
		return nil, nil, err
	}
	if len(lat) == 0 {
		return nil, nil, nil
	}

	p := NewLocalProjection(lat[0], lon[0])

	east = make([]float64, len(lat))
	north = make([]float64, len(lat))
	for i := range lat {
		east[i], north[i] = p.Project(lat[i], lon[i])
	}
	return east, north, nil
}
