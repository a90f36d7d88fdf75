package review

import (
	"testing"

	"survey-service/models"

	geojson "github.com/paulmach/go.geojson"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find(items []Item, group, label string) (Item, bool) {
	for _, item := range items {
		if item.Group == group && item.Label == label {
			return item, true
		}
	}
	return Item{}, false
}

func TestBuildOmitsZeroValues(t *testing.T) {
	data := models.SurveyData{
		VillageName:  "Ban Mai",
		DisasterType: "FLOOD",
		DeadCount:    2,
	}

	summary := Build(&data)

	_, hasDead := find(summary.Items, "impact", "Dead")
	assert.True(t, hasDead)

	_, hasMissing := find(summary.Items, "impact", "Missing")
	assert.False(t, hasMissing, "zero counters must be omitted")

	_, hasDate := find(summary.Items, "survey", "Survey date")
	assert.False(t, hasDate, "empty strings must be omitted")

	assert.Equal(t, 0, summary.PhotoCount)
	assert.False(t, summary.HasPolygon)
	assert.False(t, summary.HasLocation)
}

func TestBuildFormatsGroups(t *testing.T) {
	data := models.SurveyData{
		VillageName: "Ban Mai",
		Agriculture: models.AgricultureDamage{
			CropRai:         12.5,
			EstimatedDamage: decimal.NewFromInt(50000),
		},
		Operations: models.OperationsData{
			Military: true,
			Police:   false,
		},
		ReportType: models.ReportInformational,
	}

	summary := Build(&data)

	crops, ok := find(summary.Items, "agriculture", "Crops")
	require.True(t, ok)
	assert.Equal(t, "12.5 rai", crops.Value)

	damage, ok := find(summary.Items, "agriculture", "Estimated damage")
	require.True(t, ok)
	assert.Equal(t, "50000.00", damage.Value)

	military, ok := find(summary.Items, "operations", "Military")
	require.True(t, ok)
	assert.Equal(t, "yes", military.Value)

	_, ok = find(summary.Items, "operations", "Police")
	assert.False(t, ok, "false flags must be omitted")

	reportType, ok := find(summary.Items, "certification", "Report type")
	require.True(t, ok)
	assert.Equal(t, models.ReportInformational, reportType.Value)
}

func TestBuildTotalsDamageAcrossGroups(t *testing.T) {
	data := models.SurveyData{
		Buildings:   models.BuildingDamage{EstimatedDamage: decimal.NewFromInt(100000)},
		Agriculture: models.AgricultureDamage{EstimatedDamage: decimal.NewFromInt(50000)},
		Utilities:   models.UtilityDamage{EstimatedDamage: decimal.NewFromInt(25000)},
	}

	summary := Build(&data)
	assert.True(t, summary.TotalDamage.Equal(decimal.NewFromInt(175000)),
		"total damage should be the sum of the three groups, got %s", summary.TotalDamage)
}

func TestBuildGeometryFlags(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.AddFeature(geojson.NewPolygonFeature([][][]float64{{
		{98.90, 18.70},
		{98.91, 18.70},
		{98.91, 18.71},
		{98.90, 18.70},
	}}))

	data := models.SurveyData{
		GPSLocation: &models.GPSLocation{Lat: 18.7, Lng: 98.9},
		Polygon:     fc,
		PhotoUrls:   []string{"https://cdn/p1.jpg", "https://cdn/p2.jpg"},
	}

	summary := Build(&data)
	assert.True(t, summary.HasPolygon)
	assert.True(t, summary.HasLocation)
	assert.Equal(t, 2, summary.PhotoCount)

	// An empty collection does not count as a polygon.
	data.Polygon = geojson.NewFeatureCollection()
	assert.False(t, Build(&data).HasPolygon)
}
