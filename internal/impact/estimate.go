// Package impact estimates the CO₂ saved by reusing donated items and
// aggregates those estimates into platform statistics. Everything in this
// package is a pure function of its inputs and safe for concurrent use.
package impact

import (
	"math"
	"strings"

	"github.com/erazemk/ecoconnect/internal/model"
)

// emission is the production footprint of a new object matched by keyword.
type emission struct {
	keyword string
	kg      float64
}

// categoryTable holds the keyword emissions of one category. Keywords are
// matched in declaration order and the first hit wins, so "notebook" must be
// listed before any shorter keyword it contains.
type categoryTable struct {
	keywords []emission
	fallback float64
}

// GlobalDefault is the base emission for categories missing from the table.
const GlobalDefault = 5.0

// Transport emissions subtracted from the production savings, in kg CO₂.
const (
	TransportLocal    = 2.0
	TransportRegional = 5.0
	TransportNational = 15.0
)

// DefaultConditionFactor applies to conditions without a table entry.
const DefaultConditionFactor = 0.80

var emissions = map[string]categoryTable{
	model.CategoryElectronics: {
		keywords: []emission{
			{"smartphone", 85},
			{"notebook", 422},
			{"tablet", 105},
			{"tv", 638},
			{"computador", 500},
		},
		fallback: 300,
	},
	model.CategoryFurniture: {
		keywords: []emission{
			{"sofa", 260},
			{"mesa", 180},
			{"cadeira", 120},
			{"cama", 200},
			{"armario", 350},
		},
		fallback: 200,
	},
	model.CategoryClothing: {
		keywords: []emission{
			{"camiseta", 2.5},
			{"calca", 23.5},
			{"vestido", 15},
			{"casaco", 25},
			{"sapatos", 13.6},
		},
		fallback: 10,
	},
	model.CategoryBooks: {
		keywords: []emission{
			{"livro", 2.5},
			{"revista", 1.2},
			{"jornal", 0.3},
		},
		fallback: 2,
	},
	model.CategoryToys: {
		keywords: []emission{
			{"bicicleta", 96},
			{"boneca", 3.5},
			{"carrinho", 5},
			{"jogo", 8},
		},
		fallback: 15,
	},
	model.CategorySports: {
		keywords: []emission{
			{"bola", 12},
			{"raquete", 25},
			{"patins", 45},
			{"skate", 35},
		},
		fallback: 30,
	},
	model.CategoryHome: {
		keywords: []emission{
			{"vaso", 8},
			{"toalha", 4},
			{"panela", 15},
			{"prato", 2},
		},
		fallback: 10,
	},
	model.CategoryGardening: {
		keywords: []emission{
			{"ferramenta", 12},
			{"planta", 1},
			{"vaso", 8},
		},
		fallback: 8,
	},
	model.CategoryVehicles: {
		keywords: []emission{
			{"carro", 5000},
			{"moto", 1000},
			{"bicicleta", 96},
		},
		fallback: 2000,
	},
	model.CategoryOther: {
		fallback: GlobalDefault,
	},
}

var conditionFactors = map[string]float64{
	model.ConditionNew:         0.95,
	model.ConditionLikeNew:     0.90,
	model.ConditionGood:        0.85,
	model.ConditionFair:        0.70,
	model.ConditionNeedsRepair: 0.50,
}

// Record is the derived impact of a single item.
type Record struct {
	Category  string  `json:"category"`
	Condition string  `json:"condition"`
	Keyword   string  `json:"keyword,omitempty"`
	Base      float64 `json:"base"`
	Factor    float64 `json:"factor"`
	Adjusted  float64 `json:"adjusted"`
	Transport float64 `json:"transport"`
	Net       float64 `json:"net"`
}

// BaseEmission returns the production footprint for an item and the keyword
// that selected it, if any.
func BaseEmission(category, title string) (float64, string) {
	table, ok := emissions[category]
	if !ok {
		return GlobalDefault, ""
	}
	lower := strings.ToLower(title)
	for _, e := range table.keywords {
		if strings.Contains(lower, e.keyword) {
			return e.kg, e.keyword
		}
	}
	return table.fallback, ""
}

// ConditionFactor returns the share of production savings retained for an
// item in the given condition.
func ConditionFactor(condition string) float64 {
	if f, ok := conditionFactors[condition]; ok {
		return f
	}
	return DefaultConditionFactor
}

// Breakdown computes the full impact record for an item.
func Breakdown(category, condition, title string) Record {
	base, keyword := BaseEmission(category, title)
	factor := ConditionFactor(condition)
	adjusted := base * factor
	return Record{
		Category:  category,
		Condition: condition,
		Keyword:   keyword,
		Base:      base,
		Factor:    factor,
		Adjusted:  roundTenth(adjusted),
		Transport: TransportLocal,
		Net:       roundTenth(math.Max(0, adjusted-TransportLocal)),
	}
}

// Estimate returns the kg of CO₂ saved by reusing an item, never negative and
// rounded to one decimal.
func Estimate(category, condition, title string) float64 {
	return Breakdown(category, condition, title).Net
}

// EstimateItem is Estimate applied to an item's attributes.
func EstimateItem(item *model.Item) float64 {
	return Estimate(item.Category, item.Condition, item.Title)
}

// roundTenth rounds half away from zero at one decimal.
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
