package wizard

import (
	"encoding/json"
	"errors"
	"testing"

	"survey-service/models"

	geojson "github.com/paulmach/go.geojson"
)

func TestStepClamping(t *testing.T) {
	s := NewSession("task-1")

	if s.Step() != FirstStep {
		t.Errorf("expected new session at step %d, got %d", FirstStep, s.Step())
	}
	if got := s.Prev(); got != FirstStep {
		t.Errorf("prev at first step should stay at %d, got %d", FirstStep, got)
	}

	for i := FirstStep; i < LastStep; i++ {
		s.Next()
	}
	if s.Step() != LastStep {
		t.Errorf("expected step %d after advancing, got %d", LastStep, s.Step())
	}
	if got := s.Next(); got != LastStep {
		t.Errorf("next at last step should stay at %d, got %d", LastStep, got)
	}

	if got := s.GoTo(0); got != FirstStep {
		t.Errorf("goTo below range should clamp to %d, got %d", FirstStep, got)
	}
	if got := s.GoTo(99); got != LastStep {
		t.Errorf("goTo above range should clamp to %d, got %d", LastStep, got)
	}
	if got := s.GoTo(5); got != 5 {
		t.Errorf("goTo inside range should land on 5, got %d", got)
	}
}

func TestUpdateDataShallowMerge(t *testing.T) {
	s := NewSession("task-1")

	if err := s.UpdateData(json.RawMessage(`{"villageName":"Ban Mai","disasterType":"FLOOD"}`)); err != nil {
		t.Fatalf("first patch rejected: %v", err)
	}
	if err := s.UpdateData(json.RawMessage(`{"deadCount":2,"surveyDate":"2025-06-14"}`)); err != nil {
		t.Fatalf("second patch rejected: %v", err)
	}

	data := s.Data()
	if data.VillageName != "Ban Mai" {
		t.Errorf("earlier field lost in merge: villageName=%q", data.VillageName)
	}
	if data.DisasterType != "FLOOD" {
		t.Errorf("earlier field lost in merge: disasterType=%q", data.DisasterType)
	}
	if data.DeadCount != 2 {
		t.Errorf("patched counter not applied: deadCount=%d", data.DeadCount)
	}
	if data.SurveyDate != "2025-06-14" {
		t.Errorf("patched date not applied: surveyDate=%q", data.SurveyDate)
	}
	if data.TaskId != "task-1" {
		t.Errorf("task identity changed by merge: %q", data.TaskId)
	}
}

func TestUpdateDataPinsTaskId(t *testing.T) {
	s := NewSession("task-1")
	if err := s.UpdateData(json.RawMessage(`{"taskId":"task-999"}`)); err != nil {
		t.Fatalf("patch rejected: %v", err)
	}
	if got := s.Data().TaskId; got != "task-1" {
		t.Errorf("taskId must stay fixed at session start, got %q", got)
	}
}

func TestUpdateDataRejectsNegativeCounters(t *testing.T) {
	s := NewSession("task-1")
	if err := s.UpdateData(json.RawMessage(`{"deadCount":3}`)); err != nil {
		t.Fatalf("setup patch rejected: %v", err)
	}

	err := s.UpdateData(json.RawMessage(`{"deadCount":-1}`))
	if !errors.Is(err, ErrNegativeCounter) {
		t.Fatalf("expected ErrNegativeCounter, got %v", err)
	}
	if got := s.Data().DeadCount; got != 3 {
		t.Errorf("rejected patch must leave data unchanged, deadCount=%d", got)
	}

	err = s.UpdateData(json.RawMessage(`{"buildings":{"full":-5}}`))
	if !errors.Is(err, ErrNegativeCounter) {
		t.Fatalf("expected nested ErrNegativeCounter, got %v", err)
	}
}

func TestUpdateDataAllowsNegativeCoordinates(t *testing.T) {
	s := NewSession("task-1")
	patch := json.RawMessage(`{"gpsLocation":{"lat":-6.2,"lng":106.8}}`)
	if err := s.UpdateData(patch); err != nil {
		t.Fatalf("coordinate patch rejected: %v", err)
	}
	loc := s.Data().GPSLocation
	if loc == nil || loc.Lat != -6.2 {
		t.Errorf("expected gpsLocation lat -6.2, got %+v", loc)
	}
}

func TestUpdateDataRejectedPatchLeavesNestedStateIntact(t *testing.T) {
	s := NewSession("task-1")
	if err := s.UpdateData(json.RawMessage(`{"gpsLocation":{"lat":18.7,"lng":98.9}}`)); err != nil {
		t.Fatalf("setup patch rejected: %v", err)
	}

	// Valid JSON that fails struct decoding partway through.
	err := s.UpdateData(json.RawMessage(`{"gpsLocation":{"lat":1.5},"deadCount":"three"}`))
	if err == nil {
		t.Fatal("expected the mistyped patch to be rejected")
	}

	loc := s.Data().GPSLocation
	if loc == nil || loc.Lat != 18.7 || loc.Lng != 98.9 {
		t.Errorf("rejected patch must not touch nested state, got %+v", loc)
	}
}

func TestUpdateDataRejectsMalformedPatch(t *testing.T) {
	s := NewSession("task-1")
	if err := s.UpdateData(json.RawMessage(`{"deadCount":`)); err == nil {
		t.Error("expected malformed JSON to be rejected")
	}
}

func TestReset(t *testing.T) {
	s := NewSession("task-1")
	if err := s.UpdateData(json.RawMessage(`{"villageName":"Ban Mai","deadCount":4}`)); err != nil {
		t.Fatalf("patch rejected: %v", err)
	}
	s.GoTo(6)

	s.Reset()

	if s.Step() != FirstStep {
		t.Errorf("reset should return to step %d, got %d", FirstStep, s.Step())
	}
	data := s.Data()
	if data.VillageName != "" || data.DeadCount != 0 {
		t.Errorf("reset should clear the aggregate, got %+v", data)
	}
	if data.TaskId != "task-1" {
		t.Errorf("reset must keep the task identity, got %q", data.TaskId)
	}
	if data.PhotoUrls == nil || len(data.PhotoUrls) != 0 {
		t.Errorf("reset should leave an empty photo list, got %v", data.PhotoUrls)
	}
}

func TestIsStepValid(t *testing.T) {
	s := NewSession("task-1")

	if s.IsStepValid(FirstStep) {
		t.Error("empty first step should be invalid")
	}
	for step := FirstStep + 1; step <= LastStep; step++ {
		if !s.IsStepValid(step) {
			t.Errorf("step %d should not be gated", step)
		}
	}

	if err := s.UpdateData(json.RawMessage(`{"villageName":"Ban Mai","disasterType":"FLOOD"}`)); err != nil {
		t.Fatalf("patch rejected: %v", err)
	}
	if s.IsStepValid(FirstStep) {
		t.Error("first step without a survey date should be invalid")
	}

	if err := s.UpdateData(json.RawMessage(`{"surveyDate":"2025-06-14"}`)); err != nil {
		t.Fatalf("patch rejected: %v", err)
	}
	if !s.IsStepValid(FirstStep) {
		t.Error("first step with village, type and date should be valid")
	}
}

func TestSyncGeometryKeepsPatchedFields(t *testing.T) {
	s := NewSession("task-1")
	patch := `{
		"gpsLocation": {"lat": 18.7, "lng": 98.9},
		"polygon": {
			"type": "FeatureCollection",
			"features": [{
				"type": "Feature",
				"geometry": {
					"type": "Polygon",
					"coordinates": [[[98.90,18.70],[98.91,18.70],[98.91,18.71],[98.90,18.70]]]
				},
				"properties": {}
			}]
		}
	}`
	if err := s.UpdateData(json.RawMessage(patch)); err != nil {
		t.Fatalf("patch rejected: %v", err)
	}

	// No geometry endpoint was ever used; the patched fields must survive.
	s.SyncGeometry()

	data := s.Data()
	if data.GPSLocation == nil || data.GPSLocation.Lat != 18.7 {
		t.Errorf("patched gpsLocation lost, got %+v", data.GPSLocation)
	}
	if data.Polygon == nil || len(data.Polygon.Features) != 1 {
		t.Errorf("patched polygon lost, got %+v", data.Polygon)
	}
}

func TestSyncGeometryPrefersDrawnGeometry(t *testing.T) {
	s := NewSession("task-1")
	if err := s.UpdateData(json.RawMessage(`{"gpsLocation":{"lat":18.7,"lng":98.9}}`)); err != nil {
		t.Fatalf("patch rejected: %v", err)
	}

	s.Capture().PlaceMarker(models.GPSLocation{Lat: 19.0, Lng: 99.0})
	s.SyncGeometry()

	loc := s.Data().GPSLocation
	if loc == nil || loc.Lat != 19.0 {
		t.Errorf("drawn marker should replace the patched location, got %+v", loc)
	}
}

func TestSyncGeometryPropagatesClearedPolygon(t *testing.T) {
	s := NewSession("task-1")

	fc := geojson.NewFeatureCollection()
	fc.AddFeature(geojson.NewPolygonFeature([][][]float64{{
		{98.90, 18.70}, {98.91, 18.70}, {98.91, 18.71}, {98.90, 18.71}, {98.90, 18.70},
	}}))
	if _, err := s.Capture().SetPolygon(fc); err != nil {
		t.Fatalf("polygon rejected: %v", err)
	}
	s.SyncGeometry()
	if s.Data().Polygon == nil {
		t.Fatal("drawn polygon should reach the aggregate")
	}

	// Deleting the last shape on the drawing surface clears the aggregate too.
	s.Capture().ApplyLayerExport(geojson.NewFeatureCollection())
	s.SyncGeometry()
	if s.Data().Polygon != nil {
		t.Error("cleared polygon should be removed from the aggregate")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewSession("task-1")
	if err := s.UpdateData(json.RawMessage(`{"villageName":"Ban Mai","disasterType":"FLOOD","deadCount":1}`)); err != nil {
		t.Fatalf("patch rejected: %v", err)
	}
	s.GoTo(4)

	snap := s.Snapshot()
	if snap.Step != 4 {
		t.Errorf("snapshot step = %d, want 4", snap.Step)
	}
	if snap.Timestamp == 0 {
		t.Error("snapshot timestamp should be set")
	}

	restored := NewSession("task-1")
	restored.ApplySnapshot(snap)
	if restored.Step() != 4 {
		t.Errorf("restored step = %d, want 4", restored.Step())
	}
	data := restored.Data()
	if data.VillageName != "Ban Mai" || data.DeadCount != 1 {
		t.Errorf("restored data mismatch: %+v", data)
	}
}

func TestApplySnapshotClampsBadStep(t *testing.T) {
	s := NewSession("task-1")
	s.GoTo(3)
	s.ApplySnapshot(&models.DraftSnapshot{Timestamp: 1, Step: 42})
	if s.Step() != 3 {
		t.Errorf("out-of-range snapshot step should be ignored, got %d", s.Step())
	}
}

func TestSubmitInFlightGuard(t *testing.T) {
	s := NewSession("task-1")

	if err := s.BeginSubmit(); err != nil {
		t.Fatalf("first submit should start: %v", err)
	}
	if err := s.BeginSubmit(); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}

	s.EndSubmit()
	if err := s.BeginSubmit(); err != nil {
		t.Errorf("submit after EndSubmit should start: %v", err)
	}
}
