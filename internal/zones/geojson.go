package zones

import (
	"fleet-reposition-service/internal/domain"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ToFeatureCollection encodes zones as MultiPolygon features with a "zone"
// property holding the zone index.
func ToFeatureCollection(zs []domain.Zone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, z := range zs {
		f := geojson.NewFeature(z.Bodies)
		f.Properties["zone"] = z.ID
		fc.Append(f)
	}
	return fc
}

// FromFeatureCollection decodes zones written by ToFeatureCollection. Zones
// are returned in feature order and renumbered by position.
func FromFeatureCollection(fc *geojson.FeatureCollection) ([]domain.Zone, error) {
	out := make([]domain.Zone, 0, len(fc.Features))
	for i, f := range fc.Features {
		var bodies orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.MultiPolygon:
			bodies = g
		case orb.Polygon:
			bodies = orb.MultiPolygon{g}
		case nil:
		default:
			return nil, fmt.Errorf("zone feature %d: unsupported geometry %s", i, g.GeoJSONType())
		}
		out = append(out, domain.Zone{ID: i, Bodies: bodies})
	}
	return out, nil
}

func MarshalZones(zs []domain.Zone) ([]byte, error) {
	return ToFeatureCollection(zs).MarshalJSON()
}

func UnmarshalZones(data []byte) ([]domain.Zone, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal zones: %w", err)
	}
	return FromFeatureCollection(fc)
}
