package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Point converts the coordinates to an orb point (x=lon, y=lat).
func (c Coordinates) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

func CoordinatesFromPoint(p orb.Point) Coordinates { return Coordinates{Lon: p.Lon(), Lat: p.Lat()} }

// Rounded returns the coordinates rounded to the given number of decimals.
func (c Coordinates) Rounded(decimals int) Coordinates {
	f := math.Pow(10, float64(decimals))
	return Coordinates{
		Lon: math.Round(c.Lon*f) / f,
		Lat: math.Round(c.Lat*f) / f,
	}
}

func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return fmt.Errorf("coordinates: NaN component (lat=%v lon=%v)", c.Lat, c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("coordinates: latitude %v out of range", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("coordinates: longitude %v out of range", c.Lon)
	}
	return nil
}
