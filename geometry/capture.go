package geometry

import (
	"errors"
	"sync"

	"survey-service/models"

	"github.com/apex/log"
	geojson "github.com/paulmach/go.geojson"
)

var (
	ErrTooFewPoints    = errors.New("polygon ring needs at least 4 coordinate pairs")
	ErrEmptyLabel      = errors.New("annotation marker requires a non-empty label")
	ErrNoPendingMarker = errors.New("no annotation marker awaiting a label")
)

// AnnotationMarker is a numbered, labeled point distinct from the single
// primary location marker.
type AnnotationMarker struct {
	Number   int                `json:"number"`
	Label    string             `json:"label"`
	Location models.GPSLocation `json:"location"`
}

// DrawingSurface is the capability a map-drawing integration drives. Any
// concrete drawing library can be bridged to it; the survey aggregate only
// ever sees the normalized output.
type DrawingSurface interface {
	PlaceMarker(loc models.GPSLocation) models.GPSLocation
	BeginAnnotation(loc models.GPSLocation) int
	CommitAnnotation(label string) (AnnotationMarker, error)
	CancelAnnotation()
	RemoveAnnotation(number int) bool
	SetPolygon(fc *geojson.FeatureCollection) (float64, error)
	ApplyLayerExport(fc *geojson.FeatureCollection)
}

// Capture accumulates normalized geometry for one survey session: a single
// primary marker, numbered annotation markers, and a single polygon.
type Capture struct {
	mu          sync.Mutex
	primary     *models.GPSLocation
	annotations []AnnotationMarker
	nextNumber  int
	pending     *AnnotationMarker
	polygon     *geojson.FeatureCollection
	// polygonEdited marks that the drawing surface produced or cleared a
	// polygon this session, so a nil polygon can mean "cleared" rather
	// than "never drawn".
	polygonEdited bool
	areaRai       float64
}

func NewCapture() *Capture {
	return &Capture{nextNumber: 1}
}

// PlaceMarker replaces the primary location marker. The returned location is
// the point the map view recenters on.
func (c *Capture) PlaceMarker(loc models.GPSLocation) models.GPSLocation {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.primary = &loc
	return loc
}

// Primary returns the current primary location, nil when none was placed.
func (c *Capture) Primary() *models.GPSLocation {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.primary == nil {
		return nil
	}
	loc := *c.primary
	return &loc
}

// BeginAnnotation stages an annotation marker at loc and returns its number.
// The marker is not committed until a non-empty label is supplied; a second
// BeginAnnotation before commit rolls the first placement back.
func (c *Capture) BeginAnnotation(loc models.GPSLocation) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		log.Warnf("Annotation marker %d abandoned without a label", c.pending.Number)
	}
	c.pending = &AnnotationMarker{
		Number:   c.nextNumber,
		Location: loc,
	}
	return c.pending.Number
}

// CommitAnnotation labels the pending marker and adds it to the collection.
// An empty label rolls the placement back.
func (c *Capture) CommitAnnotation(label string) (AnnotationMarker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return AnnotationMarker{}, ErrNoPendingMarker
	}
	if label == "" {
		c.pending = nil
		return AnnotationMarker{}, ErrEmptyLabel
	}

	m := *c.pending
	m.Label = label
	c.annotations = append(c.annotations, m)
	c.nextNumber++
	c.pending = nil
	return m, nil
}

// CancelAnnotation rolls back a pending placement, if any.
func (c *Capture) CancelAnnotation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// RemoveAnnotation deletes the marker with the given number. Remaining
// markers keep their numbers for the rest of the session.
func (c *Capture) RemoveAnnotation(number int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, m := range c.annotations {
		if m.Number == number {
			c.annotations = append(c.annotations[:i], c.annotations[i+1:]...)
			return true
		}
	}
	return false
}

// Annotations returns the committed markers in session state, with the
// numbers they were placed under.
func (c *Capture) Annotations() []AnnotationMarker {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]AnnotationMarker, len(c.annotations))
	copy(out, c.annotations)
	return out
}

// ExportAnnotations re-derives 1..N numbering from the current position of
// each marker in the collection.
func (c *Capture) ExportAnnotations() []AnnotationMarker {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]AnnotationMarker, len(c.annotations))
	for i, m := range c.annotations {
		m.Number = i + 1
		out[i] = m
	}
	return out
}

// SetPolygon accepts a freshly drawn polygon, replacing any previous one.
// Rings with fewer than 4 coordinate pairs are rejected and the stored
// polygon stays unchanged. Returns the geodesic ring area in rai.
func (c *Capture) SetPolygon(fc *geojson.FeatureCollection) (float64, error) {
	ring := FirstOuterRing(fc)
	if !ValidRing(ring) {
		return 0, ErrTooFewPoints
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.polygon = fc
	c.polygonEdited = true
	c.areaRai = RingAreaRai(ring)
	return c.areaRai, nil
}

// ApplyLayerExport re-derives the stored polygon from a full layer export,
// keeping only polygonal features. Used after edit and removal events.
func (c *Capture) ApplyLayerExport(fc *geojson.FeatureCollection) {
	polygons := FilterPolygonal(fc)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.polygonEdited = true
	if len(polygons.Features) == 0 {
		c.polygon = nil
		c.areaRai = 0
		return
	}
	c.polygon = polygons
	c.areaRai = RingAreaRai(FirstOuterRing(polygons))
}

// Polygon returns the current polygon collection, nil when none is stored.
func (c *Capture) Polygon() *geojson.FeatureCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polygon
}

// PolygonState returns the stored polygon together with whether the drawing
// surface produced or cleared one this session.
func (c *Capture) PolygonState() (*geojson.FeatureCollection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polygon, c.polygonEdited
}

// AreaRai returns the informational area of the stored polygon.
func (c *Capture) AreaRai() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.areaRai
}
