package review

import (
	"fmt"
	"strconv"

	"survey-service/models"

	"github.com/shopspring/decimal"
)

// Item is one line of the human-checkable summary.
type Item struct {
	Group string `json:"group"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Summary is the read-only projection shown before final submission. Zero
// and empty fields are omitted to reduce noise; this is display policy only
// and does not affect what is submitted.
type Summary struct {
	Items       []Item          `json:"items"`
	TotalDamage decimal.Decimal `json:"totalDamage"`
	PhotoCount  int             `json:"photoCount"`
	HasPolygon  bool            `json:"hasPolygon"`
	HasLocation bool            `json:"hasLocation"`
	ReportType  string          `json:"reportType"`
}

type builder struct {
	items []Item
}

func (b *builder) str(group, label, value string) {
	if value == "" {
		return
	}
	b.items = append(b.items, Item{Group: group, Label: label, Value: value})
}

func (b *builder) count(group, label string, value int) {
	if value == 0 {
		return
	}
	b.items = append(b.items, Item{Group: group, Label: label, Value: strconv.Itoa(value)})
}

func (b *builder) area(group, label string, value float64) {
	if value == 0 {
		return
	}
	b.items = append(b.items, Item{Group: group, Label: label, Value: fmt.Sprintf("%g rai", value)})
}

func (b *builder) money(group, label string, value decimal.Decimal) {
	if value.IsZero() {
		return
	}
	b.items = append(b.items, Item{Group: group, Label: label, Value: value.StringFixed(2)})
}

func (b *builder) flag(group, label string, value bool) {
	if !value {
		return
	}
	b.items = append(b.items, Item{Group: group, Label: label, Value: "yes"})
}

// Build projects the aggregate into the grouped summary.
func Build(d *models.SurveyData) *Summary {
	b := &builder{items: []Item{}}

	b.str("survey", "Village", d.VillageName)
	b.str("survey", "Disaster type", d.DisasterType)
	b.str("survey", "Survey date", d.SurveyDate)

	b.count("impact", "Affected households", d.AffectedHouseholds)
	b.count("impact", "Affected people", d.AffectedPeople)
	b.count("impact", "Dead", d.DeadCount)
	b.count("impact", "Missing", d.MissingCount)
	b.count("impact", "Injured", d.InjuredCount)
	b.count("impact", "Evacuated people", d.EvacuatedPeople)
	b.count("impact", "Evacuated households", d.EvacuatedHouseholds)

	b.count("buildings", "Partially damaged", d.Buildings.Partial)
	b.count("buildings", "Fully damaged", d.Buildings.Full)
	b.count("buildings", "High-rise", d.Buildings.HighRise)
	b.count("buildings", "Factories", d.Buildings.Factories)
	b.count("buildings", "Temples", d.Buildings.Temples)
	b.count("buildings", "Government places", d.Buildings.GovtPlaces)
	b.count("buildings", "Other buildings", d.Buildings.Other)
	b.money("buildings", "Estimated damage", d.Buildings.EstimatedDamage)

	b.area("agriculture", "Crops", d.Agriculture.CropRai)
	b.area("agriculture", "Rice", d.Agriculture.RiceRai)
	b.area("agriculture", "Orchards", d.Agriculture.OrchardRai)
	b.count("agriculture", "Fish ponds", d.Agriculture.FishPonds)
	b.count("agriculture", "Shrimp ponds", d.Agriculture.ShrimpPonds)
	b.count("agriculture", "Cows", d.Agriculture.LivestockCows)
	b.count("agriculture", "Pigs", d.Agriculture.LivestockPigs)
	b.count("agriculture", "Poultry", d.Agriculture.LivestockPoultry)
	b.count("agriculture", "Other livestock", d.Agriculture.LivestockOther)
	b.money("agriculture", "Estimated damage", d.Agriculture.EstimatedDamage)

	b.count("utilities", "Agricultural roads", d.Utilities.RoadsAgri)
	b.count("utilities", "Weirs", d.Utilities.Weirs)
	b.count("utilities", "Bridge necks", d.Utilities.BridgeNecks)
	b.count("utilities", "Bridges", d.Utilities.Bridges)
	b.count("utilities", "Dams", d.Utilities.Dams)
	b.count("utilities", "Dikes", d.Utilities.Dikes)
	b.count("utilities", "Landslides", d.Utilities.Landslides)
	b.count("utilities", "Other utilities", d.Utilities.Other)
	b.money("utilities", "Estimated damage", d.Utilities.EstimatedDamage)

	b.str("relief", "Operations", d.ReliefOperations)

	b.count("resources", "Vehicles", d.Resources.Vehicles)
	b.count("resources", "Boats", d.Resources.Boats)
	b.count("resources", "Machinery", d.Resources.Machinery)
	b.count("resources", "Water trucks", d.Resources.WaterTrucks)
	b.count("resources", "Agencies", d.Resources.Agencies)
	b.count("resources", "Officers", d.Resources.Officers)
	b.count("resources", "Volunteers", d.Resources.Volunteers)
	b.count("resources", "Rescue workers", d.Resources.RescueWorkers)

	b.flag("operations", "Military", d.Operations.Military)
	b.flag("operations", "Police", d.Operations.Police)
	b.flag("operations", "Red Cross", d.Operations.RedCross)
	b.flag("operations", "Foundations", d.Operations.Foundations)
	b.flag("operations", "Local government", d.Operations.LocalGov)
	b.flag("operations", "Public health", d.Operations.PublicHealth)
	b.str("operations", "Other agency", d.Operations.OtherAgency)

	b.str("certification", "Report type", d.ReportType)

	return &Summary{
		Items:       b.items,
		TotalDamage: d.TotalDamage(),
		PhotoCount:  len(d.PhotoUrls),
		HasPolygon:  d.Polygon != nil && len(d.Polygon.Features) > 0,
		HasLocation: d.GPSLocation != nil,
		ReportType:  d.ReportType,
	}
}
