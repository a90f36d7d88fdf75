package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"survey-service/drafts"
	"survey-service/models"
	"survey-service/submission"
	"survey-service/validation"
	"survey-service/wizard"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, backendURL string) (*SurveyHandler, sqlmock.Sqlmock) {
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := drafts.NewStore(db, 24*time.Hour)
	manager := wizard.NewManager(store, time.Millisecond)
	client := submission.NewClient(backendURL, 5*time.Second, 5*time.Second)
	pipeline := submission.NewPipeline(client, manager)
	engine := validation.NewEngine(validation.ThailandBounds)

	return NewSurveyHandler(manager, pipeline, client, engine), mock
}

func postJSON(handler gin.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	handler(c)
	return w
}

func getURL(handler gin.HandlerFunc, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	handler(c)
	return w
}

// startSession opens a session directly, bypassing the draft lookup the
// /start_survey endpoint performs.
func startSession(t *testing.T, h *SurveyHandler, mock sqlmock.Sqlmock, taskId string) {
	mock.ExpectQuery("SELECT payload, ts FROM survey_drafts").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "ts"}))
	w := postJSON(h.StartSurvey, "/start_survey", gin.H{"taskId": taskId})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestStartSurveyReportsNoDraft(t *testing.T) {
	h, mock := newTestHandler(t, "http://backend.invalid")
	mock.ExpectQuery("SELECT payload, ts FROM survey_drafts").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "ts"}))

	w := postJSON(h.StartSurvey, "/start_survey", gin.H{"taskId": "task-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Step  int `json:"step"`
		Draft struct {
			Available bool `json:"available"`
		} `json:"draft"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, wizard.FirstStep, resp.Step)
	assert.False(t, resp.Draft.Available)
}

func TestStartSurveyReportsFreshDraft(t *testing.T) {
	h, mock := newTestHandler(t, "http://backend.invalid")

	savedAt := time.Now().Add(-30 * time.Minute).UnixMilli()
	payload, err := json.Marshal(models.DraftSnapshot{
		Timestamp: savedAt,
		Step:      3,
		Data: models.SurveyData{
			TaskId:      "task-1",
			VillageName: "Ban Mai",
			PhotoUrls:   []string{},
		},
	})
	require.NoError(t, err)
	mock.ExpectQuery("SELECT payload, ts FROM survey_drafts").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "ts"}).AddRow(payload, savedAt))

	w := postJSON(h.StartSurvey, "/start_survey", gin.H{"taskId": "task-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Draft struct {
			Available  bool  `json:"available"`
			AgeMinutes int64 `json:"ageMinutes"`
		} `json:"draft"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Draft.Available)
	assert.InDelta(t, 30, resp.Draft.AgeMinutes, 1)
}

func TestUpdateSurveyRequiresSession(t *testing.T) {
	h, _ := newTestHandler(t, "http://backend.invalid")

	w := postJSON(h.UpdateSurvey, "/update_survey", gin.H{
		"taskId": "nope",
		"data":   gin.H{"villageName": "Ban Mai"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateSurveyMergesAndRejects(t *testing.T) {
	h, mock := newTestHandler(t, "http://backend.invalid")
	startSession(t, h, mock, "task-1")

	w := postJSON(h.UpdateSurvey, "/update_survey", gin.H{
		"taskId": "task-1",
		"data":   gin.H{"villageName": "Ban Mai", "deadCount": 2},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			VillageName string `json:"villageName"`
			DeadCount   int    `json:"deadCount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Ban Mai", resp.Data.VillageName)
	assert.Equal(t, 2, resp.Data.DeadCount)

	// Negative counters bounce with 422 and leave the aggregate alone.
	w = postJSON(h.UpdateSurvey, "/update_survey", gin.H{
		"taskId": "task-1",
		"data":   gin.H{"deadCount": -1},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	sess, ok := hManagerGet(h, "task-1")
	require.True(t, ok)
	assert.Equal(t, 2, sess.Data().DeadCount)
}

func hManagerGet(h *SurveyHandler, taskId string) (*wizard.Session, bool) {
	return h.manager.Get(taskId)
}

func TestNavigateActions(t *testing.T) {
	h, mock := newTestHandler(t, "http://backend.invalid")
	startSession(t, h, mock, "task-1")

	var resp struct {
		Step      int  `json:"step"`
		StepValid bool `json:"stepValid"`
	}

	w := postJSON(h.Navigate, "/navigate", gin.H{"taskId": "task-1", "action": "next"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Step)
	assert.True(t, resp.StepValid, "steps past the first are not gated")

	w = postJSON(h.Navigate, "/navigate", gin.H{"taskId": "task-1", "action": "goto", "step": 99})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, wizard.LastStep, resp.Step, "goto clamps to the last step")

	w = postJSON(h.Navigate, "/navigate", gin.H{"taskId": "task-1", "action": "reset"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, wizard.FirstStep, resp.Step)
	assert.False(t, resp.StepValid, "empty first step reports invalid")

	w = postJSON(h.Navigate, "/navigate", gin.H{"taskId": "task-1", "action": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGeometryFlow(t *testing.T) {
	h, mock := newTestHandler(t, "http://backend.invalid")
	startSession(t, h, mock, "task-1")

	w := postJSON(h.PlaceMarker, "/geometry/marker", gin.H{
		"taskId": "task-1", "lat": 18.78, "lng": 98.98,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(h.BeginAnnotation, "/geometry/annotation", gin.H{
		"taskId": "task-1", "lat": 18.79, "lng": 98.99,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Whitespace-only labels roll the placement back.
	w = postJSON(h.CommitAnnotation, "/geometry/annotation_label", gin.H{
		"taskId": "task-1", "label": "   ",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = postJSON(h.BeginAnnotation, "/geometry/annotation", gin.H{
		"taskId": "task-1", "lat": 18.79, "lng": 98.99,
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = postJSON(h.CommitAnnotation, "/geometry/annotation_label", gin.H{
		"taskId": "task-1", "label": "flooded school",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// A three point ring bounces; the session keeps no polygon.
	w = postJSON(h.SetPolygon, "/geometry/polygon", gin.H{
		"taskId": "task-1",
		"polygon": gin.H{
			"type": "FeatureCollection",
			"features": []gin.H{{
				"type": "Feature",
				"geometry": gin.H{
					"type": "Polygon",
					"coordinates": [][][]float64{{
						{98.90, 18.70}, {98.91, 18.70}, {98.91, 18.71},
					}},
				},
				"properties": gin.H{},
			}},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = postJSON(h.SetPolygon, "/geometry/polygon", gin.H{
		"taskId": "task-1",
		"polygon": gin.H{
			"type": "FeatureCollection",
			"features": []gin.H{{
				"type": "Feature",
				"geometry": gin.H{
					"type": "Polygon",
					"coordinates": [][][]float64{{
						{98.90, 18.70}, {98.91, 18.70}, {98.91, 18.71}, {98.90, 18.71}, {98.90, 18.70},
					}},
				},
				"properties": gin.H{},
			}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var polyResp struct {
		AreaRai float64 `json:"areaRai"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &polyResp))
	assert.Greater(t, polyResp.AreaRai, 0.0)

	w = getURL(h.GetGeometry, "/geometry?task_id=task-1")
	require.Equal(t, http.StatusOK, w.Code)

	var geoResp struct {
		Primary *struct {
			Lat float64 `json:"lat"`
		} `json:"primary"`
		Annotations []struct {
			Number int    `json:"number"`
			Label  string `json:"label"`
		} `json:"annotations"`
		AreaRai float64 `json:"areaRai"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &geoResp))
	require.NotNil(t, geoResp.Primary)
	assert.Equal(t, 18.78, geoResp.Primary.Lat)
	require.Len(t, geoResp.Annotations, 1)
	assert.Equal(t, 1, geoResp.Annotations[0].Number)
	assert.Equal(t, "flooded school", geoResp.Annotations[0].Label)
	assert.Greater(t, geoResp.AreaRai, 0.0)
}

func TestPlaceMarkerRejectsOutOfBounds(t *testing.T) {
	h, mock := newTestHandler(t, "http://backend.invalid")
	startSession(t, h, mock, "task-1")

	w := postJSON(h.PlaceMarker, "/geometry/marker", gin.H{
		"taskId": "task-1", "lat": 25.0, "lng": 100.0,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Nothing was placed.
	sess, ok := hManagerGet(h, "task-1")
	require.True(t, ok)
	assert.Nil(t, sess.Capture().Primary())
}

func TestGetReviewSubmitReady(t *testing.T) {
	h, mock := newTestHandler(t, "http://backend.invalid")
	startSession(t, h, mock, "task-1")

	w := getURL(h.GetReview, "/review?task_id=task-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		StepsValid  []bool `json:"stepsValid"`
		SubmitReady bool   `json:"submitReady"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.StepsValid, wizard.LastStep)
	assert.False(t, resp.SubmitReady)

	postJSON(h.UpdateSurvey, "/update_survey", gin.H{
		"taskId": "task-1",
		"data": gin.H{
			"villageId":    "v-42",
			"disasterType": "FLOOD",
			"reportType":   "INFORMATIONAL",
		},
	})

	w = getURL(h.GetReview, "/review?task_id=task-1")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.SubmitReady)
}

func TestSubmitSurveyStatusMapping(t *testing.T) {
	h, mock := newTestHandler(t, "http://backend.invalid")
	startSession(t, h, mock, "task-1")

	// Missing village short-circuits before any backend call.
	w := postJSON(h.SubmitSurvey, "/submit_survey", gin.H{"taskId": "task-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = postJSON(h.SubmitSurvey, "/submit_survey", gin.H{"taskId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitSurveyBackendErrorDetail(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"maintenance window"}`))
	}))
	defer backend.Close()

	h, mock := newTestHandler(t, backend.URL)
	startSession(t, h, mock, "task-1")

	postJSON(h.UpdateSurvey, "/update_survey", gin.H{
		"taskId": "task-1",
		"data":   gin.H{"villageId": "v-42", "disasterType": "FLOOD"},
	})

	w := postJSON(h.SubmitSurvey, "/submit_survey", gin.H{"taskId": "task-1"})
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "maintenance window", resp.Error)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)

	// The session survives for retry.
	_, ok := hManagerGet(h, "task-1")
	assert.True(t, ok)
}

func TestValidateIncidentWholeForm(t *testing.T) {
	h, _ := newTestHandler(t, "http://backend.invalid")

	w := postJSON(h.ValidateIncident, "/validate_incident", gin.H{
		"form": gin.H{"severity": "9"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Valid      bool              `json:"valid"`
		Errors     map[string]string `json:"errors"`
		FirstError string            `json:"firstError"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Contains(t, resp.Errors, validation.FieldSeverity)
	assert.Equal(t, "village is required", resp.FirstError)
}

func TestValidateIncidentSingleField(t *testing.T) {
	h, _ := newTestHandler(t, "http://backend.invalid")

	w := postJSON(h.ValidateIncident, "/validate_incident", gin.H{
		"form":  gin.H{"village": "Ban Mai"},
		"field": validation.FieldVillage,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Valid  bool              `json:"valid"`
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Errors)
}

func TestCreateIncidentRejectsInvalidForm(t *testing.T) {
	h, _ := newTestHandler(t, "http://backend.invalid")

	w := postJSON(h.CreateIncident, "/create_incident", gin.H{
		"village": "Ban Mai",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Errors     map[string]string `json:"errors"`
		FirstError string            `json:"firstError"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Errors)
	assert.NotEmpty(t, resp.FirstError)
}
