package gsloc

import (
	"fmt"

	"github.com/gsloc/gsloc/geojson"
	"github.com/gsloc/gsloc/wloc"
)

// WifiRecord is the validated location of one access point. Values are only
// built by FromResponseWifi and are not modified afterwards.
type WifiRecord struct {
	MAC              string  `json:"mac"`
	Channel          int32   `json:"channel"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Accuracy         int32   `json:"accuracy"`
	Altitude         int32   `json:"altitude"`
	AltitudeAccuracy int32   `json:"altitude_accuracy"`
}

// FromResponseWifi converts a decoded service record, undoing the coordinate
// scaling. The service answers unknown access points with out of range
// placeholder values, so a record that fails validation yields a
// *NoResultError for its MAC rather than a validation error.
func FromResponseWifi(w wloc.ResponseWifi) (WifiRecord, error) {
	record := WifiRecord{
		MAC:              w.MAC,
		Channel:          w.Channel,
		Latitude:         float64(w.Location.Latitude) / wloc.CoordinateScale,
		Longitude:        float64(w.Location.Longitude) / wloc.CoordinateScale,
		Accuracy:         w.Location.Accuracy,
		Altitude:         w.Location.Altitude,
		AltitudeAccuracy: w.Location.AltitudeAccuracy,
	}
	if !record.valid() {
		return WifiRecord{}, &NoResultError{MAC: w.MAC}
	}
	return record, nil
}

// altitude and altitude accuracy are unconstrained
func (r WifiRecord) valid() bool {
	return r.Channel > 0 && r.Channel < 256 &&
		r.Latitude >= -90 && r.Latitude <= 90 &&
		r.Longitude >= -180 && r.Longitude <= 180 &&
		r.Accuracy >= 0
}

// Feature renders the record as a GeoJSON point carrying every field as a property.
func (r WifiRecord) Feature() geojson.Feature {
	return geojson.NewFeature(geojson.Point(r.Longitude, r.Latitude), r)
}

// Features renders records in order.
func Features(records []WifiRecord) []geojson.Feature {
	features := make([]geojson.Feature, len(records))
	for i, r := range records {
		features[i] = r.Feature()
	}
	return features
}

func (r WifiRecord) String() string {
	return fmt.Sprintf("%s channel=%d latitude=%.8f longitude=%.8f accuracy=%d altitude=%d altitude_accuracy=%d",
		r.MAC, r.Channel, r.Latitude, r.Longitude, r.Accuracy, r.Altitude, r.AltitudeAccuracy)
}
