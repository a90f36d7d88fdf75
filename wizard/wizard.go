package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"survey-service/geometry"
	"survey-service/models"
)

const (
	// FirstStep through LastStep are the wizard positions. LastStep is the
	// review position; submission happens there, there is no step beyond it.
	FirstStep = 1
	LastStep  = 8
)

var (
	ErrSubmitInFlight  = errors.New("a submission for this survey is already in flight")
	ErrNegativeCounter = errors.New("counters must not be negative")
)

// Session owns the mutable aggregate of one in-progress survey. All
// mutations go through its transition methods; no caller can replace the
// aggregate wholesale.
type Session struct {
	TaskId string

	mu         sync.Mutex
	step       int
	data       models.SurveyData
	capture    *geometry.Capture
	submitting bool
	updatedAt  time.Time
}

func NewSession(taskId string) *Session {
	return &Session{
		TaskId:    taskId,
		step:      FirstStep,
		data:      emptySurvey(taskId),
		capture:   geometry.NewCapture(),
		updatedAt: time.Now(),
	}
}

func emptySurvey(taskId string) models.SurveyData {
	return models.SurveyData{
		TaskId:    taskId,
		PhotoUrls: []string{},
	}
}

// Step returns the current wizard position.
func (s *Session) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Next advances one step, staying at the last step when already there.
func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step < LastStep {
		s.step++
	}
	return s.step
}

// Prev goes back one step, staying at the first step when already there.
func (s *Session) Prev() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step > FirstStep {
		s.step--
	}
	return s.step
}

// GoTo jumps directly to a step, clamped to the valid range.
func (s *Session) GoTo(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < FirstStep {
		n = FirstStep
	}
	if n > LastStep {
		n = LastStep
	}
	s.step = n
	return s.step
}

// UpdateData shallow-merges a partial JSON object into the aggregate. Keys
// absent from the patch stay untouched. Callers changing one field inside a
// sub-group are responsible for sending the full sub-object. Negative
// counter values are rejected and the aggregate stays unchanged.
func (s *Session) UpdateData(patch json.RawMessage) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(patch, &fields); err != nil {
		return fmt.Errorf("invalid survey patch: %w", err)
	}
	if field, ok := findNegativeCounter(fields, ""); ok {
		return fmt.Errorf("%w: %s", ErrNegativeCounter, field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Merge into a deep copy so a patch that fails mid-decode cannot leave
	// partial writes behind pointer fields of the live aggregate.
	current, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("serializing survey data: %w", err)
	}
	var merged models.SurveyData
	if err := json.Unmarshal(current, &merged); err != nil {
		return fmt.Errorf("copying survey data: %w", err)
	}
	if err := json.Unmarshal(patch, &merged); err != nil {
		return fmt.Errorf("invalid survey patch: %w", err)
	}

	// The task identity is fixed at session start.
	merged.TaskId = s.TaskId
	s.data = merged
	s.updatedAt = time.Now()
	return nil
}

// Counter fields are non-negative by invariant; coordinate values are the
// only numbers in the aggregate allowed below zero.
func findNegativeCounter(fields map[string]interface{}, prefix string) (string, bool) {
	for key, value := range fields {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := value.(type) {
		case float64:
			if v < 0 && key != "lat" && key != "lng" {
				return path, true
			}
		case map[string]interface{}:
			if key == "polygon" || key == "gpsLocation" {
				continue
			}
			if p, ok := findNegativeCounter(v, path); ok {
				return p, true
			}
		}
	}
	return "", false
}

// Reset restores the empty defaults and returns to the first step.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step = FirstStep
	s.data = emptySurvey(s.TaskId)
	s.capture = geometry.NewCapture()
	s.updatedAt = time.Now()
}

// Data returns a copy of the aggregate.
func (s *Session) Data() models.SurveyData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// IsStepValid reports per-step validity. Only the first step is gated
// (village, disaster type and survey date); all later steps report valid so
// officers can fill data non-linearly. The review step and the submission
// preconditions remain the final gate.
func (s *Session) IsStepValid(step int) bool {
	if step != FirstStep {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.data.VillageId != "" || s.data.VillageName != "") &&
		s.data.DisasterType != "" &&
		s.data.SurveyDate != ""
}

// Capture returns the geometry capture of this session.
func (s *Session) Capture() *geometry.Capture {
	return s.capture
}

// SyncGeometry pulls the capture state into the aggregate's location fields.
// Fields the drawing surface never touched are left alone, so a gpsLocation
// or polygon supplied directly through UpdateData survives.
func (s *Session) SyncGeometry() {
	primary := s.capture.Primary()
	polygon, polygonEdited := s.capture.PolygonState()

	s.mu.Lock()
	defer s.mu.Unlock()
	if primary != nil {
		s.data.GPSLocation = primary
	}
	if polygonEdited {
		s.data.Polygon = polygon
	}
	s.updatedAt = time.Now()
}

// Snapshot produces a draft snapshot of the current state.
func (s *Session) Snapshot() *models.DraftSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &models.DraftSnapshot{
		Timestamp: time.Now().UnixMilli(),
		Step:      s.step,
		Data:      s.data,
	}
}

// ApplySnapshot merges a restored draft into the session.
func (s *Session) ApplySnapshot(snap *models.DraftSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = snap.Data
	s.data.TaskId = s.TaskId
	if snap.Step >= FirstStep && snap.Step <= LastStep {
		s.step = snap.Step
	}
	s.updatedAt = time.Now()
}

// BeginSubmit marks a submission in flight. A second submission of the same
// aggregate is rejected until EndSubmit, which is the only double-submit
// guard this system has.
func (s *Session) BeginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitting {
		return ErrSubmitInFlight
	}
	s.submitting = true
	return nil
}

// EndSubmit clears the in-flight mark.
func (s *Session) EndSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
}
