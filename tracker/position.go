package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang/geo/s2"
	"github.com/tzneal/coordconv"
)

// earthRadiusMeters is the mean Earth radius used for track distances.
const earthRadiusMeters = 6371008.8

// PositionRecord is one entry of the device position log. Fields are kept
// exactly as the device sent them.
type PositionRecord struct {
	Timestamp string `json:"timestamp"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// DecodePositions converts position log lines into records.
//
// The device writes "<index>,<timestamp>,<longitude>,<latitude>[,...]", so
// field 1 is the timestamp, field 3 the latitude and field 2 the longitude.
// Decoding stops at the first line with fewer than four fields and returns a
// *DecodeError for it.
func DecodePositions(body [][]byte) ([]PositionRecord, error) {
	records := make([]PositionRecord, 0, len(body))
	for i, line := range body {
		rec, err := decodePosition(i, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodePositionsLenient is like DecodePositions but skips malformed lines.
// The returned error joins one *DecodeError per skipped line and is nil when
// every line decoded.
func DecodePositionsLenient(body [][]byte) ([]PositionRecord, error) {
	records := make([]PositionRecord, 0, len(body))
	var errs []error
	for i, line := range body {
		rec, err := decodePosition(i, line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, errors.Join(errs...)
}

func decodePosition(i int, line []byte) (PositionRecord, error) {
	fields := bytes.Split(line, []byte{','})
	if len(fields) < 4 {
		return PositionRecord{}, &DecodeError{Line: i, Raw: bytes.Clone(line)}
	}
	return PositionRecord{
		Timestamp: string(fields[1]),
		Latitude:  string(fields[3]),
		Longitude: string(fields[2]),
	}, nil
}

// LatLng parses the record as decimal degrees.
func (p PositionRecord) LatLng() (s2.LatLng, error) {
	lat, err := strconv.ParseFloat(p.Latitude, 64)
	if err != nil {
		return s2.LatLng{}, fmt.Errorf("latitude %q: %w", p.Latitude, err)
	}
	lng, err := strconv.ParseFloat(p.Longitude, 64)
	if err != nil {
		return s2.LatLng{}, fmt.Errorf("longitude %q: %w", p.Longitude, err)
	}
	ll := s2.LatLngFromDegrees(lat, lng)
	if !ll.IsValid() {
		return s2.LatLng{}, fmt.Errorf("position %s,%s out of range", p.Latitude, p.Longitude)
	}
	return ll, nil
}

// UTM converts the record to Universal Transverse Mercator coordinates,
// letting the converter pick the zone.
func (p PositionRecord) UTM() (coordconv.UTMCoord, error) {
	ll, err := p.LatLng()
	if err != nil {
		return coordconv.UTMCoord{}, err
	}
	return coordconv.DefaultUTMConverter.ConvertFromGeodetic(ll, 0)
}

// MGRS converts the record to a Military Grid Reference System string.
// precision ranges from 0 (100 km) to 5 (1 m).
func (p PositionRecord) MGRS(precision int) (string, error) {
	ll, err := p.LatLng()
	if err != nil {
		return "", err
	}
	grid, err := coordconv.DefaultMGRSConverter.ConvertFromGeodetic(ll, precision)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(grid), nil
}

// TrackDistance sums the great-circle distance in meters between consecutive
// records. Records whose coordinates do not parse are skipped and counted.
func TrackDistance(records []PositionRecord) (meters float64, skipped int) {
	var prev s2.LatLng
	havePrev := false
	for _, rec := range records {
		ll, err := rec.LatLng()
		if err != nil {
			skipped++
			continue
		}
		if havePrev {
			meters += prev.Distance(ll).Radians() * earthRadiusMeters
		}
		prev, havePrev = ll, true
	}
	return meters, skipped
}
