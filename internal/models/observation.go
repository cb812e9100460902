package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var (
	// ErrMissingField is returned when an observation lacks a required key.
	ErrMissingField = errors.New("missing field")
	// ErrInvalidFormat is returned when a coordinate or timestamp cannot be parsed.
	ErrInvalidFormat = errors.New("invalid data format")
	// ErrOutOfRange is returned when a coordinate lies outside its valid range.
	ErrOutOfRange = errors.New("coordinates out of range")
	// ErrNotArray is returned when an observation batch is not a JSON array.
	ErrNotArray = errors.New("observation batch is not a JSON array")
)

// Observation field names.
const (
	FieldDeviceID   = "device_id"
	FieldLatitude   = "latitude"
	FieldLongitude  = "longitude"
	FieldObservedAt = "observed_at"
)

// timestampAliases are accepted in place of observed_at, in priority order.
var timestampAliases = []string{FieldObservedAt, "created_at", "timestamp"}

// timestampLayouts covers RFC 3339 and the zone-less ISO forms emitted by the
// upstream systems. Zone-less values are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Observation is one externally reported position sample. It is kept as raw
// JSON until Validate is called so that a malformed item only fails itself.
type Observation struct {
	raw gjson.Result
}

// ObservationFromJSON wraps a single JSON object.
func ObservationFromJSON(raw []byte) Observation {
	return Observation{raw: gjson.ParseBytes(raw)}
}

// NewObservation builds an observation from typed values.
func NewObservation(deviceID string, latitude, longitude float64, observedAt time.Time) Observation {
	payload, _ := json.Marshal(map[string]any{
		FieldDeviceID:   deviceID,
		FieldLatitude:   latitude,
		FieldLongitude:  longitude,
		FieldObservedAt: observedAt.UTC().Format(time.RFC3339Nano),
	})
	return ObservationFromJSON(payload)
}

// ParseObservationBatch splits a JSON array body into observations.
func ParseObservationBatch(body []byte) ([]Observation, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrNotArray)
	}
	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, ErrNotArray
	}

	items := result.Array()
	observations := make([]Observation, 0, len(items))
	for _, item := range items {
		observations = append(observations, Observation{raw: item})
	}
	return observations, nil
}

// DeviceID returns the raw device id for log and error labels, or "" if absent.
func (o Observation) DeviceID() string {
	return o.raw.Get(FieldDeviceID).String()
}

// Validate checks that all four fields are present and well formed.
func (o Observation) Validate() (Position, error) {
	if !o.raw.IsObject() {
		return Position{}, ErrInvalidFormat
	}

	deviceField := o.raw.Get(FieldDeviceID)
	if !deviceField.Exists() || deviceField.Type == gjson.Null {
		return Position{}, fmt.Errorf("%w: %s", ErrMissingField, FieldDeviceID)
	}
	if deviceField.Type != gjson.String {
		return Position{}, ErrInvalidFormat
	}
	deviceID := strings.TrimSpace(deviceField.Str)
	if deviceID == "" {
		return Position{}, fmt.Errorf("%w: %s", ErrMissingField, FieldDeviceID)
	}

	latField := o.raw.Get(FieldLatitude)
	if !latField.Exists() {
		return Position{}, fmt.Errorf("%w: %s", ErrMissingField, FieldLatitude)
	}
	lonField := o.raw.Get(FieldLongitude)
	if !lonField.Exists() {
		return Position{}, fmt.Errorf("%w: %s", ErrMissingField, FieldLongitude)
	}
	tsField, ok := o.timestampField()
	if !ok {
		return Position{}, fmt.Errorf("%w: %s", ErrMissingField, FieldObservedAt)
	}

	latitude, err := parseCoordinate(latField)
	if err != nil {
		return Position{}, err
	}
	longitude, err := parseCoordinate(lonField)
	if err != nil {
		return Position{}, err
	}
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return Position{}, ErrOutOfRange
	}

	observedAt, err := parseTimestamp(tsField)
	if err != nil {
		return Position{}, err
	}

	return Position{
		DeviceID:   deviceID,
		Latitude:   latitude,
		Longitude:  longitude,
		ObservedAt: observedAt,
	}, nil
}

// HasTimestamp reports whether any accepted timestamp key is present.
func (o Observation) HasTimestamp() bool {
	_, ok := o.timestampField()
	return ok
}

func (o Observation) timestampField() (gjson.Result, bool) {
	for _, key := range timestampAliases {
		if field := o.raw.Get(key); field.Exists() {
			return field, true
		}
	}
	return gjson.Result{}, false
}

// parseCoordinate accepts JSON numbers and numeric strings.
func parseCoordinate(field gjson.Result) (float64, error) {
	switch field.Type {
	case gjson.Number:
		return field.Num, nil
	case gjson.String:
		value, err := strconv.ParseFloat(strings.TrimSpace(field.Str), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, ErrInvalidFormat
		}
		return value, nil
	default:
		return 0, ErrInvalidFormat
	}
}

// Timestamps must fit in int64 Unix nanoseconds, the stores' representation.
var (
	minTimestamp = time.Unix(0, math.MinInt64).UTC()
	maxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// parseTimestamp accepts ISO 8601 strings and Unix seconds.
func parseTimestamp(field gjson.Result) (time.Time, error) {
	var ts time.Time
	switch field.Type {
	case gjson.Number:
		if field.Num < float64(minTimestamp.Unix()) || field.Num > float64(maxTimestamp.Unix()) {
			return time.Time{}, ErrInvalidFormat
		}
		seconds := int64(field.Num)
		nanos := int64((field.Num - float64(seconds)) * float64(time.Second))
		ts = time.Unix(seconds, nanos).UTC()
	case gjson.String:
		parsed, err := parseISOTimestamp(field.Str)
		if err != nil {
			return time.Time{}, err
		}
		ts = parsed
	default:
		return time.Time{}, ErrInvalidFormat
	}

	if ts.Before(minTimestamp) || ts.After(maxTimestamp) {
		return time.Time{}, ErrInvalidFormat
	}
	return ts, nil
}

// parseISOTimestamp treats zone-less values as UTC.
func parseISOTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidFormat
}
