package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"survey-service/models"
	"survey-service/review"
	"survey-service/submission"
	"survey-service/validation"
	"survey-service/wizard"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	geojson "github.com/paulmach/go.geojson"
)

// SurveyHandler wires the wizard, validation, geometry, drafts and the
// submission pipeline into the HTTP API used by field clients.
type SurveyHandler struct {
	manager  *wizard.Manager
	pipeline *submission.Pipeline
	client   *submission.Client
	engine   *validation.Engine
}

func NewSurveyHandler(manager *wizard.Manager, pipeline *submission.Pipeline, client *submission.Client, engine *validation.Engine) *SurveyHandler {
	return &SurveyHandler{
		manager:  manager,
		pipeline: pipeline,
		client:   client,
		engine:   engine,
	}
}

// HealthCheck returns a simple health status
func (h *SurveyHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "survey-service",
	})
}

type taskRequest struct {
	TaskId string `json:"taskId" binding:"required"`
}

type draftInfo struct {
	Available  bool  `json:"available"`
	SavedAt    int64 `json:"savedAt,omitempty"`
	AgeMinutes int64 `json:"ageMinutes,omitempty"`
}

// StartSurvey opens (or resumes) a wizard session. When a fresh draft
// exists its age is reported so the client can offer restore-or-discard.
func (h *SurveyHandler) StartSurvey(c *gin.Context) {
	args := &taskRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /start_survey call: %v", err)
		return
	}

	sess, snap := h.manager.Start(c.Request.Context(), args.TaskId)

	draft := draftInfo{}
	if snap != nil {
		draft.Available = true
		draft.SavedAt = snap.Timestamp
		draft.AgeMinutes = (time.Now().UnixMilli() - snap.Timestamp) / 60000
	}

	c.JSON(http.StatusOK, gin.H{
		"step":  sess.Step(),
		"data":  sess.Data(),
		"draft": draft,
	})
}

// RestoreDraft merges the stored draft into the session after the user
// confirmed the restore choice.
func (h *SurveyHandler) RestoreDraft(c *gin.Context) {
	args := &taskRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /restore_draft call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	restored, err := h.manager.Restore(c.Request.Context(), sess)
	if err != nil {
		log.Warnf("Draft restore for task %s failed: %v", args.TaskId, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"restored": restored,
		"step":     sess.Step(),
		"data":     sess.Data(),
	})
}

// DiscardDraft is the explicit "start fresh" action: the snapshot is
// deleted and the session returns to empty defaults.
func (h *SurveyHandler) DiscardDraft(c *gin.Context) {
	args := &taskRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /discard_draft call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	h.manager.ClearDraft(c.Request.Context(), args.TaskId)
	sess.Reset()
	c.Status(http.StatusOK)
}

type updateRequest struct {
	TaskId string          `json:"taskId" binding:"required"`
	Data   json.RawMessage `json:"data" binding:"required"`
}

// UpdateSurvey shallow-merges a partial update into the aggregate and
// schedules a debounced draft save.
func (h *SurveyHandler) UpdateSurvey(c *gin.Context) {
	args := &updateRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /update_survey call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	if err := sess.UpdateData(args.Data); err != nil {
		log.Warnf("Rejected survey patch for task %s: %v", args.TaskId, err)
		c.String(http.StatusUnprocessableEntity, fmt.Sprint(err))
		return
	}
	h.manager.Touch(sess)

	c.JSON(http.StatusOK, gin.H{
		"step": sess.Step(),
		"data": sess.Data(),
	})
}

type navigateRequest struct {
	TaskId string `json:"taskId" binding:"required"`
	Action string `json:"action" binding:"required"` // next, prev, goto, reset
	Step   int    `json:"step"`
}

// Navigate moves the wizard position. Navigation is never blocked by
// incomplete steps; per-step validity is advisory.
func (h *SurveyHandler) Navigate(c *gin.Context) {
	args := &navigateRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /navigate call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	var step int
	switch args.Action {
	case "next":
		step = sess.Next()
	case "prev":
		step = sess.Prev()
	case "goto":
		step = sess.GoTo(args.Step)
	case "reset":
		sess.Reset()
		step = sess.Step()
	default:
		c.String(http.StatusBadRequest, "unknown action %q", args.Action)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"step":      step,
		"stepValid": sess.IsStepValid(step),
	})
}

// GetReview returns the read-only confirmation summary, the computed total
// damage and per-step validity.
func (h *SurveyHandler) GetReview(c *gin.Context) {
	taskId := c.Query("task_id")
	sess, ok := h.manager.Get(taskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", taskId)
		return
	}

	sess.SyncGeometry()
	data := sess.Data()

	stepsValid := make([]bool, wizard.LastStep)
	for i := range stepsValid {
		stepsValid[i] = sess.IsStepValid(i + 1)
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":     review.Build(&data),
		"stepsValid":  stepsValid,
		"submitReady": data.VillageId != "" && data.DisasterType != "" && models.ValidReportType(data.ReportType),
	})
}

type submitRequest struct {
	TaskId   string                   `json:"taskId" binding:"required"`
	EditFlow bool                     `json:"editFlow"`
	Photos   []submission.StagedPhoto `json:"photos"`
}

// SubmitSurvey runs the submission pipeline for a confirmed submit action.
func (h *SurveyHandler) SubmitSurvey(c *gin.Context) {
	args := &submitRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /submit_survey call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	record, err := h.pipeline.Submit(c.Request.Context(), sess, submission.Options{
		Photos:   args.Photos,
		EditFlow: args.EditFlow,
	})
	if err != nil {
		h.submitError(c, args.TaskId, err)
		return
	}

	h.manager.End(args.TaskId)

	assessment := record.Report.DamageAssessment
	totalDamage := assessment.Buildings.EstimatedDamage.
		Add(assessment.Agriculture.EstimatedDamage).
		Add(assessment.Utilities.EstimatedDamage)

	c.JSON(http.StatusOK, gin.H{
		"record":      record,
		"totalDamage": totalDamage,
	})
}

// submitError maps pipeline failures to the statuses the client renders as
// dialog-level detail. The aggregate stays intact for retry in every case.
func (h *SurveyHandler) submitError(c *gin.Context, taskId string, err error) {
	var backendErr *submission.BackendError

	switch {
	case errors.Is(err, wizard.ErrSubmitInFlight):
		c.String(http.StatusConflict, fmt.Sprint(err))
	case errors.Is(err, submission.ErrMissingVillage), errors.Is(err, submission.ErrMissingDisasterType):
		c.String(http.StatusUnprocessableEntity, fmt.Sprint(err))
	case errors.As(err, &backendErr):
		log.Errorf("Backend rejected submission for task %s: %v", taskId, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  backendErr.Message,
			"status": backendErr.StatusCode,
		})
	default:
		log.Errorf("Submission for task %s failed: %v", taskId, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": submission.GenericSubmitError})
	}
}

type markerRequest struct {
	TaskId string  `json:"taskId" binding:"required"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// PlaceMarker replaces the primary location marker and returns the point
// the map recenters on.
func (h *SurveyHandler) PlaceMarker(c *gin.Context) {
	args := &markerRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /marker call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	if !h.engine.InBounds(args.Lat, args.Lng) {
		c.String(http.StatusUnprocessableEntity, "marker must fall within the service area")
		return
	}

	center := sess.Capture().PlaceMarker(models.GPSLocation{Lat: args.Lat, Lng: args.Lng})
	sess.SyncGeometry()
	h.manager.Touch(sess)

	c.JSON(http.StatusOK, gin.H{"center": center})
}

// BeginAnnotation stages a numbered annotation marker awaiting its label.
func (h *SurveyHandler) BeginAnnotation(c *gin.Context) {
	args := &markerRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /annotation call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	number := sess.Capture().BeginAnnotation(models.GPSLocation{Lat: args.Lat, Lng: args.Lng})
	c.JSON(http.StatusOK, gin.H{"number": number})
}

type annotationLabelRequest struct {
	TaskId string `json:"taskId" binding:"required"`
	Label  string `json:"label"`
}

// CommitAnnotation confirms the pending marker's label. An empty label
// rolls the placement back.
func (h *SurveyHandler) CommitAnnotation(c *gin.Context) {
	args := &annotationLabelRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /annotation_label call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	marker, err := sess.Capture().CommitAnnotation(strings.TrimSpace(args.Label))
	if err != nil {
		c.String(http.StatusUnprocessableEntity, fmt.Sprint(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"marker": marker})
}

type annotationRemoveRequest struct {
	TaskId string `json:"taskId" binding:"required"`
	Number int    `json:"number" binding:"required"`
}

// RemoveAnnotation deletes one annotation marker.
func (h *SurveyHandler) RemoveAnnotation(c *gin.Context) {
	args := &annotationRemoveRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /annotation_remove call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	if !sess.Capture().RemoveAnnotation(args.Number) {
		c.String(http.StatusNotFound, "no annotation marker %d", args.Number)
		return
	}
	c.Status(http.StatusOK)
}

type polygonRequest struct {
	TaskId  string                     `json:"taskId" binding:"required"`
	Polygon *geojson.FeatureCollection `json:"polygon" binding:"required"`
}

// SetPolygon accepts a freshly drawn polygon. Invalid shapes are rejected
// here and never reach the aggregate.
func (h *SurveyHandler) SetPolygon(c *gin.Context) {
	args := &polygonRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /polygon call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	areaRai, err := sess.Capture().SetPolygon(args.Polygon)
	if err != nil {
		c.String(http.StatusUnprocessableEntity, fmt.Sprint(err))
		return
	}
	sess.SyncGeometry()
	h.manager.Touch(sess)

	c.JSON(http.StatusOK, gin.H{"areaRai": areaRai})
}

type layerExportRequest struct {
	TaskId string                     `json:"taskId" binding:"required"`
	Layers *geojson.FeatureCollection `json:"layers" binding:"required"`
}

// ApplyLayerExport re-derives the stored polygon after edit or removal
// events on the drawing surface.
func (h *SurveyHandler) ApplyLayerExport(c *gin.Context) {
	args := &layerExportRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /layers call: %v", err)
		return
	}

	sess, ok := h.manager.Get(args.TaskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", args.TaskId)
		return
	}

	sess.Capture().ApplyLayerExport(args.Layers)
	sess.SyncGeometry()
	h.manager.Touch(sess)

	c.JSON(http.StatusOK, gin.H{"areaRai": sess.Capture().AreaRai()})
}

// GetGeometry returns the normalized geometry of the session, with
// annotation numbering re-derived from current collection order.
func (h *SurveyHandler) GetGeometry(c *gin.Context) {
	taskId := c.Query("task_id")
	sess, ok := h.manager.Get(taskId)
	if !ok {
		c.String(http.StatusNotFound, "no active session for task %s", taskId)
		return
	}

	capture := sess.Capture()
	c.JSON(http.StatusOK, gin.H{
		"primary":     capture.Primary(),
		"annotations": capture.ExportAnnotations(),
		"polygon":     capture.Polygon(),
		"areaRai":     capture.AreaRai(),
	})
}

type validateRequest struct {
	Form  models.IncidentForm `json:"form"`
	Field string              `json:"field"`
}

// ValidateIncident runs the validation engine, either over the whole form
// or over a single field for live feedback.
func (h *SurveyHandler) ValidateIncident(c *gin.Context) {
	args := &validateRequest{}
	if err := c.BindJSON(args); err != nil {
		log.Errorf("Failed to get the argument in /validate_incident call: %v", err)
		return
	}

	if args.Field != "" {
		msg := h.engine.ValidateField(&args.Form, args.Field)
		errs := validation.Errors{}
		if msg != "" {
			errs[args.Field] = msg
		}
		c.JSON(http.StatusOK, gin.H{"errors": errs, "valid": msg == ""})
		return
	}

	errs := h.engine.Validate(&args.Form)
	c.JSON(http.StatusOK, gin.H{
		"errors":     errs,
		"valid":      !validation.HasErrors(errs),
		"firstError": validation.First(errs),
	})
}

// CreateIncident validates the flat incident form and, when clean, posts
// the structured incident to the backend.
func (h *SurveyHandler) CreateIncident(c *gin.Context) {
	form := &models.IncidentForm{}
	if err := c.BindJSON(form); err != nil {
		log.Errorf("Failed to get the argument in /create_incident call: %v", err)
		return
	}

	errs := h.engine.Validate(form)
	if validation.HasErrors(errs) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"errors":     errs,
			"firstError": validation.First(errs),
		})
		return
	}

	severity, _ := strconv.Atoi(strings.TrimSpace(form.Severity))
	incident := &models.Incident{
		Title:        fmt.Sprintf("%s - %s", form.DisasterType, form.Village),
		Description:  strings.TrimSpace(form.Notes),
		DisasterType: strings.TrimSpace(form.DisasterType),
		Severity:     severity,
		Location:     geojson.NewPointGeometry([]float64{*form.Longitude, *form.Latitude}),
		Address:      strings.TrimSpace(form.Village),
		AffectedArea: form.PolygonData,
	}

	if err := h.client.CreateIncident(c.Request.Context(), incident); err != nil {
		h.submitError(c, "", err)
		return
	}
	c.Status(http.StatusOK)
}

// MySurveys proxies the officer's submitted surveys from the backend.
func (h *SurveyHandler) MySurveys(c *gin.Context) {
	officer := c.Query("officer")
	surveys, err := h.client.ListMySurveys(c.Request.Context(), officer)
	if err != nil {
		log.Errorf("Error listing surveys for officer %s: %v", officer, err)
		c.String(http.StatusBadGateway, fmt.Sprint(err))
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"surveys": surveys})
}

// GetSurvey proxies one submitted survey by id.
func (h *SurveyHandler) GetSurvey(c *gin.Context) {
	id := c.Param("id")
	survey, err := h.client.GetSurvey(c.Request.Context(), id)
	if err != nil {
		log.Errorf("Error getting survey %s: %v", id, err)
		c.String(http.StatusBadGateway, fmt.Sprint(err))
		return
	}
	c.IndentedJSON(http.StatusOK, survey)
}
