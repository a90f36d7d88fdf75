package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"survey-service/geometry"
	"survey-service/models"
)

// Errors maps invalid field names to human-readable messages. Absence of a
// key means the field is valid. A derived view, never stored.
type Errors map[string]string

// FieldOrder is the canonical evaluation order, used by First to make "the
// first error" deterministic.
var FieldOrder = []string{
	FieldVillage,
	FieldDisasterType,
	FieldSeverity,
	FieldEstimatedHouseholds,
	FieldNotes,
	FieldLocation,
	FieldPolygon,
	FieldIncidentDate,
}

const (
	FieldVillage             = "village"
	FieldDisasterType        = "disasterType"
	FieldSeverity            = "severity"
	FieldEstimatedHouseholds = "estimatedHouseholds"
	FieldNotes               = "notes"
	FieldLocation            = "location"
	FieldPolygon             = "polygon"
	FieldIncidentDate        = "incidentDate"
)

const (
	minSeverity = 1
	maxSeverity = 5

	minHouseholds = 0
	maxHouseholds = 10000

	minNotesLen = 10
	maxNotesLen = 2000
)

// Bounds is the geographic bounding box accepted GPS locations must fall in.
type Bounds struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// ThailandBounds is the default bounding box.
var ThailandBounds = Bounds{LatMin: 5.0, LatMax: 21.0, LonMin: 97.0, LonMax: 106.0}

// Engine validates incident forms. It is pure: no I/O, no mutation of its
// input, deterministic for a fixed clock.
type Engine struct {
	bounds Bounds
	now    func() time.Time
}

func NewEngine(bounds Bounds) *Engine {
	return &Engine{bounds: bounds, now: time.Now}
}

// Validate checks every field and returns the sparse error map.
func (e *Engine) Validate(form *models.IncidentForm) Errors {
	errs := Errors{}
	for _, field := range FieldOrder {
		if msg := e.ValidateField(form, field); msg != "" {
			errs[field] = msg
		}
	}
	return errs
}

// ValidateField checks a single field against the given form state and
// returns the error message, or "" when the field is valid. Supports live
// per-field feedback without re-running the whole form.
func (e *Engine) ValidateField(form *models.IncidentForm, field string) string {
	switch field {
	case FieldVillage:
		if strings.TrimSpace(form.Village) == "" {
			return "village is required"
		}
	case FieldDisasterType:
		dt := strings.TrimSpace(form.DisasterType)
		if dt == "" {
			return "disaster type is required"
		}
		if !models.ValidDisasterType(dt) {
			return fmt.Sprintf("disaster type must be one of %s", strings.Join(models.DisasterTypes, ", "))
		}
	case FieldSeverity:
		n, err := strconv.Atoi(strings.TrimSpace(form.Severity))
		if err != nil || n < minSeverity || n > maxSeverity {
			return fmt.Sprintf("severity must be an integer between %d and %d", minSeverity, maxSeverity)
		}
	case FieldEstimatedHouseholds:
		s := strings.TrimSpace(form.EstimatedHouseholds)
		if s == "" {
			return "" // optional
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < minHouseholds || n > maxHouseholds {
			return fmt.Sprintf("estimated households must be an integer between %d and %d", minHouseholds, maxHouseholds)
		}
	case FieldNotes:
		l := len(strings.TrimSpace(form.Notes))
		if l < minNotesLen || l > maxNotesLen {
			return fmt.Sprintf("notes must be between %d and %d characters", minNotesLen, maxNotesLen)
		}
	case FieldLocation:
		if form.Latitude == nil || form.Longitude == nil {
			return "location is required"
		}
		if !e.InBounds(*form.Latitude, *form.Longitude) {
			return fmt.Sprintf("location must fall within latitude %g..%g and longitude %g..%g",
				e.bounds.LatMin, e.bounds.LatMax, e.bounds.LonMin, e.bounds.LonMax)
		}
	case FieldPolygon:
		ring := geometry.FirstOuterRing(form.PolygonData)
		if ring == nil {
			return "affected area polygon is required"
		}
		if !geometry.ValidRing(ring) {
			return fmt.Sprintf("polygon outer ring needs at least %d coordinate pairs", geometry.MinRingPoints)
		}
	case FieldIncidentDate:
		t, err := ParseDate(form.IncidentDate)
		if err != nil {
			return "incident date is required"
		}
		now := e.now()
		if t.After(now) {
			return "incident date cannot be in the future"
		}
		if t.Before(now.AddDate(-1, 0, 0)) {
			return "incident date cannot be more than one year in the past"
		}
	}
	return ""
}

// InBounds reports whether a coordinate falls inside the configured bounding
// box.
func (e *Engine) InBounds(lat, lng float64) bool {
	return lat >= e.bounds.LatMin && lat <= e.bounds.LatMax &&
		lng >= e.bounds.LonMin && lng <= e.bounds.LonMax
}

// HasErrors reports whether the map holds at least one error.
func HasErrors(errs Errors) bool {
	return len(errs) > 0
}

// First returns the message of the first invalid field in canonical order,
// or "" when the map is empty.
func First(errs Errors) string {
	for _, field := range FieldOrder {
		if msg, ok := errs[field]; ok {
			return msg
		}
	}
	return ""
}

// ParseDate accepts the two date shapes the form widgets produce.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
