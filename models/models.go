package models

import (
	geojson "github.com/paulmach/go.geojson"
	"github.com/shopspring/decimal"
)

func init() {
	// The reporting backend expects plain JSON numbers for currency fields.
	decimal.MarshalJSONWithoutQuotes = true
}

// Disaster types accepted by the incident-creation boundary.
const (
	DisasterFlood      = "FLOOD"
	DisasterLandslide  = "LANDSLIDE"
	DisasterFire       = "FIRE"
	DisasterStorm      = "STORM"
	DisasterEarthquake = "EARTHQUAKE"
	DisasterDrought    = "DROUGHT"
	DisasterOther      = "OTHER"
)

// DisasterTypes lists every accepted disaster type, in contract order.
var DisasterTypes = []string{
	DisasterFlood,
	DisasterLandslide,
	DisasterFire,
	DisasterStorm,
	DisasterEarthquake,
	DisasterDrought,
	DisasterOther,
}

// ValidDisasterType reports whether s is one of the accepted disaster types.
func ValidDisasterType(s string) bool {
	for _, t := range DisasterTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Report certification types.
const (
	ReportInformational        = "INFORMATIONAL"
	ReportDisasterZoneDeclared = "DISASTER_ZONE_DECLARATION"
	ReportAssistanceRequest    = "ASSISTANCE_REQUEST"
)

// ValidReportType reports whether s is one of the certification types.
func ValidReportType(s string) bool {
	return s == ReportInformational || s == ReportDisasterZoneDeclared || s == ReportAssistanceRequest
}

type GPSLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type BuildingDamage struct {
	Partial         int             `json:"partial"`
	Full            int             `json:"full"`
	HighRise        int             `json:"highRise"`
	Factories       int             `json:"factories"`
	Temples         int             `json:"temples"`
	GovtPlaces      int             `json:"govtPlaces"`
	Other           int             `json:"other"`
	EstimatedDamage decimal.Decimal `json:"estimatedDamage"`
}

type AgricultureDamage struct {
	CropRai          float64         `json:"cropRai"`
	RiceRai          float64         `json:"riceRai"`
	OrchardRai       float64         `json:"orchardRai"`
	FishPonds        int             `json:"fishPonds"`
	ShrimpPonds      int             `json:"shrimpPonds"`
	LivestockCows    int             `json:"livestockCows"`
	LivestockPigs    int             `json:"livestockPigs"`
	LivestockPoultry int             `json:"livestockPoultry"`
	LivestockOther   int             `json:"livestockOther"`
	EstimatedDamage  decimal.Decimal `json:"estimatedDamage"`
}

type UtilityDamage struct {
	RoadsAgri       int             `json:"roadsAgri"`
	Weirs           int             `json:"weirs"`
	BridgeNecks     int             `json:"bridgeNecks"`
	Bridges         int             `json:"bridges"`
	Dams            int             `json:"dams"`
	Dikes           int             `json:"dikes"`
	Landslides      int             `json:"landslides"`
	Other           int             `json:"other"`
	EstimatedDamage decimal.Decimal `json:"estimatedDamage"`
}

type DamageAssessment struct {
	Buildings   BuildingDamage    `json:"buildings"`
	Agriculture AgricultureDamage `json:"agriculture"`
	Utilities   UtilityDamage     `json:"utilities"`
}

type ResourcesData struct {
	Vehicles      int `json:"vehicles"`
	Boats         int `json:"boats"`
	Machinery     int `json:"machinery"`
	WaterTrucks   int `json:"waterTrucks"`
	Agencies      int `json:"agencies"`
	Officers      int `json:"officers"`
	Volunteers    int `json:"volunteers"`
	RescueWorkers int `json:"rescueWorkers"`
}

// OperationsData flags the agency categories involved in relief operations.
type OperationsData struct {
	Military     bool   `json:"military"`
	Police       bool   `json:"police"`
	RedCross     bool   `json:"redCross"`
	Foundations  bool   `json:"foundations"`
	LocalGov     bool   `json:"localGov"`
	PublicHealth bool   `json:"publicHealth"`
	OtherAgency  string `json:"otherAgency"`
}

// SurveyData is the single mutable aggregate of one in-progress survey.
// Counters default to 0; absence of a value is represented as 0, never null.
type SurveyData struct {
	TaskId       string `json:"taskId,omitempty"`
	VillageId    string `json:"villageId"`
	VillageName  string `json:"villageName"`
	DisasterType string `json:"disasterType"`
	SurveyDate   string `json:"surveyDate"`

	GPSLocation *GPSLocation               `json:"gpsLocation,omitempty"`
	Polygon     *geojson.FeatureCollection `json:"polygon,omitempty"`
	PhotoUrls   []string                   `json:"photoUrls"`

	AffectedHouseholds  int `json:"affectedHouseholds"`
	AffectedPeople      int `json:"affectedPeople"`
	DeadCount           int `json:"deadCount"`
	MissingCount        int `json:"missingCount"`
	InjuredCount        int `json:"injuredCount"`
	EvacuatedPeople     int `json:"evacuatedPeople"`
	EvacuatedHouseholds int `json:"evacuatedHouseholds"`

	Buildings   BuildingDamage    `json:"buildings"`
	Agriculture AgricultureDamage `json:"agriculture"`
	Utilities   UtilityDamage     `json:"utilities"`

	ReliefOperations string         `json:"reliefOperations"`
	Resources        ResourcesData  `json:"resourcesData"`
	Operations       OperationsData `json:"operationsData"`

	ReportType string `json:"reportType"`
}

// TotalDamage is the sum of the three group estimates.
func (d *SurveyData) TotalDamage() decimal.Decimal {
	return d.Buildings.EstimatedDamage.
		Add(d.Agriculture.EstimatedDamage).
		Add(d.Utilities.EstimatedDamage)
}

// SurveyReport is the submission payload expected by the reporting backend.
type SurveyReport struct {
	TaskId       string       `json:"taskId,omitempty"`
	VillageId    string       `json:"villageId"`
	VillageName  string       `json:"villageName"`
	DisasterType string       `json:"disasterType"`
	SurveyDate   string       `json:"surveyDate"`
	GPSLocation  *GPSLocation `json:"gpsLocation,omitempty"`

	AffectedHouseholds  int `json:"affectedHouseholds"`
	AffectedPeople      int `json:"affectedPeople"`
	DeadCount           int `json:"deadCount"`
	MissingCount        int `json:"missingCount"`
	InjuredCount        int `json:"injuredCount"`
	EvacuatedPeople     int `json:"evacuatedPeople"`
	EvacuatedHouseholds int `json:"evacuatedHouseholds"`

	DamageAssessment DamageAssessment `json:"damageAssessment"`

	ReliefOperations string         `json:"reliefOperations"`
	Resources        ResourcesData  `json:"resourcesData"`
	Operations       OperationsData `json:"operationsData"`

	ReportType string                     `json:"reportType"`
	PhotoUrls  []string                   `json:"photoUrls"`
	Polygon    *geojson.FeatureCollection `json:"polygon,omitempty"`
}

// SubmittedSurvey is the record the backend returns after a successful submit.
type SubmittedSurvey struct {
	Id          string       `json:"id"`
	TaskId      string       `json:"taskId,omitempty"`
	VillageId   string       `json:"villageId"`
	VillageName string       `json:"villageName"`
	SurveyDate  string       `json:"surveyDate"`
	ReportType  string       `json:"reportType"`
	CreatedAt   string       `json:"createdAt"`
	Report      SurveyReport `json:"report"`
}

// IncidentForm is the flat form of the simpler incident-creation boundary.
// Numeric fields arrive as strings, exactly as the form widgets produce them.
type IncidentForm struct {
	Village             string                     `json:"village"`
	DisasterType        string                     `json:"disasterType"`
	Severity            string                     `json:"severity"`
	EstimatedHouseholds string                     `json:"estimatedHouseholds"`
	Notes               string                     `json:"notes"`
	Latitude            *float64                   `json:"latitude"`
	Longitude           *float64                   `json:"longitude"`
	PolygonData         *geojson.FeatureCollection `json:"polygonData"`
	IncidentDate        string                     `json:"incidentDate"`
}

// Incident is the payload posted to the create-incident endpoint.
type Incident struct {
	Title        string                     `json:"title"`
	Description  string                     `json:"description"`
	DisasterType string                     `json:"disasterType"`
	Severity     int                        `json:"severity"`
	Location     *geojson.Geometry          `json:"location"`
	Address      string                     `json:"address"`
	AffectedArea *geojson.FeatureCollection `json:"affectedArea,omitempty"`
}

// DraftSnapshot is a timestamped partial serialization of the aggregate,
// persisted under survey-draft-{taskId}.
type DraftSnapshot struct {
	Timestamp int64      `json:"timestamp"` // epoch millis
	Step      int        `json:"step"`
	Data      SurveyData `json:"data"`
}
