package main

import (
	"fmt"
	"strconv"
	"time"

	"survey-service/config"
	"survey-service/drafts"
	"survey-service/handlers"
	"survey-service/submission"
	"survey-service/utils"
	"survey-service/validation"
	"survey-service/version"
	ws "survey-service/websocket"
	"survey-service/wizard"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const (
	EndPointHealth = "/health"

	EndPointStartSurvey  = "/start_survey"
	EndPointRestoreDraft = "/restore_draft"
	EndPointDiscardDraft = "/discard_draft"
	EndPointUpdateSurvey = "/update_survey"
	EndPointNavigate     = "/navigate"
	EndPointReview       = "/review"
	EndPointSubmitSurvey = "/submit_survey"

	EndPointMarker           = "/geometry/marker"
	EndPointAnnotation       = "/geometry/annotation"
	EndPointAnnotationLabel  = "/geometry/annotation_label"
	EndPointAnnotationRemove = "/geometry/annotation_remove"
	EndPointPolygon          = "/geometry/polygon"
	EndPointLayers           = "/geometry/layers"
	EndPointGeometry         = "/geometry"

	EndPointValidateIncident = "/validate_incident"
	EndPointCreateIncident   = "/create_incident"
	EndPointMySurveys        = "/my_surveys"
	EndPointSurveyById       = "/survey/:id"

	EndPointListen = "/ws/submissions"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Info("Starting the survey service...")

	// Connect to database
	db, err := utils.DBConnect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize database schema
	if err := drafts.InitSchema(db); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	// Initialize services
	draftStore := drafts.NewStore(db, time.Duration(cfg.DraftTTLHours)*time.Hour)
	sweeper := drafts.StartSweeper(draftStore)
	defer sweeper.Stop()

	manager := wizard.NewManager(draftStore, time.Duration(cfg.DraftDebounceMS)*time.Millisecond)

	backend := submission.NewClient(cfg.BackendURL,
		time.Duration(cfg.BackendTimeoutS)*time.Second,
		time.Duration(cfg.UploadTimeoutS)*time.Second)
	pipeline := submission.NewPipeline(backend, manager)

	engine := validation.NewEngine(validation.Bounds{
		LatMin: cfg.LatMin,
		LatMax: cfg.LatMax,
		LonMin: cfg.LonMin,
		LonMax: cfg.LonMax,
	})

	hub := ws.NewHub()
	go hub.Run()
	pipeline.OnSubmitted = hub.BroadcastSubmission

	// Initialize handlers
	surveyHandler := handlers.NewSurveyHandler(manager, pipeline, backend, engine)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Setup router
	router := gin.Default()
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, version.Get("survey-service"))
	})

	// Register health endpoint (outside API group)
	router.GET(EndPointHealth, surveyHandler.HealthCheck)

	// Create API v3 router group
	apiV3 := router.Group("/api/v3")
	{
		apiV3.POST(EndPointStartSurvey, surveyHandler.StartSurvey)
		apiV3.POST(EndPointRestoreDraft, surveyHandler.RestoreDraft)
		apiV3.POST(EndPointDiscardDraft, surveyHandler.DiscardDraft)
		apiV3.POST(EndPointUpdateSurvey, surveyHandler.UpdateSurvey)
		apiV3.POST(EndPointNavigate, surveyHandler.Navigate)
		apiV3.GET(EndPointReview, surveyHandler.GetReview)
		apiV3.POST(EndPointSubmitSurvey, surveyHandler.SubmitSurvey)

		apiV3.POST(EndPointMarker, surveyHandler.PlaceMarker)
		apiV3.POST(EndPointAnnotation, surveyHandler.BeginAnnotation)
		apiV3.POST(EndPointAnnotationLabel, surveyHandler.CommitAnnotation)
		apiV3.POST(EndPointAnnotationRemove, surveyHandler.RemoveAnnotation)
		apiV3.POST(EndPointPolygon, surveyHandler.SetPolygon)
		apiV3.POST(EndPointLayers, surveyHandler.ApplyLayerExport)
		apiV3.GET(EndPointGeometry, surveyHandler.GetGeometry)

		apiV3.POST(EndPointValidateIncident, surveyHandler.ValidateIncident)
		apiV3.POST(EndPointCreateIncident, surveyHandler.CreateIncident)
		apiV3.GET(EndPointMySurveys, surveyHandler.MySurveys)
		apiV3.GET(EndPointSurveyById, surveyHandler.GetSurvey)
	}

	router.GET(EndPointListen, wsHandler.ListenSubmissions)
	router.GET("/ws/stats", wsHandler.Stats)

	// Get server port from config
	serverPort, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Fatalf("Invalid PORT configuration: %v", err)
	}

	// Start server
	log.Infof("Survey service starting on port %d", serverPort)
	if err := router.Run(fmt.Sprintf(":%d", serverPort)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
