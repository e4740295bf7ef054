package impact

import (
	"math"

	"github.com/erazemk/ecoconnect/internal/model"
)

// Conversion constants for CO₂ equivalents.
const (
	KgPerTreeYear    = 22.0
	CarKmPerKg       = 4.0
	KgPerFlight      = 100.0
	KgPerSmartphone  = 85.0
	KgPerPersonMonth = 8.3
)

// TopCategory is the category with the largest estimated savings.
type TopCategory struct {
	Name string `json:"name"`
	CO2  int    `json:"co2"`
}

// Stats summarizes the impact of donated items.
type Stats struct {
	TotalCO2       int                `json:"total_co2"`
	CO2ByCategory  map[string]float64 `json:"co2_by_category"`
	TopCategory    *TopCategory       `json:"top_category"`
	ItemCount      int                `json:"item_count"`
	AveragePerItem int                `json:"average_per_item"`
	ReuseRate      int                `json:"reuse_rate"`
}

// ComputeStats folds the donated items among items through the estimator.
// ReuseRate is the share of donated items among all items given.
func ComputeStats(items []model.Item) Stats {
	stats := Stats{CO2ByCategory: make(map[string]float64)}

	var total float64
	var order []string
	for i := range items {
		if items[i].Status != model.ItemStatusDonated {
			continue
		}
		co2 := EstimateItem(&items[i])
		total += co2
		stats.ItemCount++

		if _, seen := stats.CO2ByCategory[items[i].Category]; !seen {
			order = append(order, items[i].Category)
		}
		stats.CO2ByCategory[items[i].Category] += co2
	}

	for _, name := range order {
		sum := stats.CO2ByCategory[name]
		if stats.TopCategory == nil || sum > stats.CO2ByCategory[stats.TopCategory.Name] {
			stats.TopCategory = &TopCategory{Name: name}
		}
	}
	if stats.TopCategory != nil {
		stats.TopCategory.CO2 = int(math.Round(stats.CO2ByCategory[stats.TopCategory.Name]))
	}
	for name, sum := range stats.CO2ByCategory {
		stats.CO2ByCategory[name] = roundTenth(sum)
	}

	stats.TotalCO2 = int(math.Round(total))
	if stats.ItemCount > 0 {
		stats.AveragePerItem = int(math.Round(total / float64(stats.ItemCount)))
	}
	if len(items) > 0 {
		stats.ReuseRate = int(math.Round(100 * float64(stats.ItemCount) / float64(len(items))))
	}
	return stats
}

// Equivalents expresses an amount of CO₂ in everyday terms.
type Equivalents struct {
	Trees       int `json:"trees"`
	CarKm       int `json:"car_km"`
	Flights     int `json:"flights"`
	Smartphones int `json:"smartphones"`
	Months      int `json:"months"`
}

// EquivalentsFor converts kg of CO₂ into equivalents.
func EquivalentsFor(kg int) Equivalents {
	v := float64(kg)
	return Equivalents{
		Trees:       int(math.Round(v / KgPerTreeYear)),
		CarKm:       int(math.Round(v * CarKmPerKg)),
		Flights:     int(math.Round(v / KgPerFlight)),
		Smartphones: int(math.Round(v / KgPerSmartphone)),
		Months:      int(math.Round(v / KgPerPersonMonth)),
	}
}
