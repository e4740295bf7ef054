package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/ecoconnect/internal/model"
)

func donated(category, condition, title string) model.Item {
	return model.Item{Category: category, Condition: condition, Title: title, Status: model.ItemStatusDonated}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	assert.Equal(t, 0, stats.ItemCount)
	assert.Equal(t, 0, stats.TotalCO2)
	assert.Equal(t, 0, stats.AveragePerItem)
	assert.Equal(t, 0, stats.ReuseRate)
	assert.Nil(t, stats.TopCategory)
	assert.NotNil(t, stats.CO2ByCategory)
	assert.Empty(t, stats.CO2ByCategory)
}

func TestComputeStatsBooksAndFurniture(t *testing.T) {
	items := []model.Item{
		donated(model.CategoryBooks, model.ConditionNew, "Livro de receitas"),
		donated(model.CategoryFurniture, model.ConditionGood, "Estante"),
		{Category: model.CategoryElectronics, Condition: model.ConditionNew, Title: "Notebook", Status: model.ItemStatusAvailable},
	}

	stats := ComputeStats(items)
	require.NotNil(t, stats.TopCategory)
	assert.Equal(t, model.CategoryFurniture, stats.TopCategory.Name)
	assert.Equal(t, 168, stats.TopCategory.CO2)
	assert.Equal(t, 168, stats.TotalCO2)
	assert.Equal(t, 2, stats.ItemCount)
	assert.Equal(t, 84, stats.AveragePerItem)
	assert.Equal(t, 67, stats.ReuseRate)
	assert.InDelta(t, 0.4, stats.CO2ByCategory[model.CategoryBooks], 1e-9)
	assert.InDelta(t, 168.0, stats.CO2ByCategory[model.CategoryFurniture], 1e-9)
	assert.NotContains(t, stats.CO2ByCategory, model.CategoryElectronics)
}

func TestComputeStatsOnlyDonatedCount(t *testing.T) {
	items := []model.Item{
		{Category: model.CategoryFurniture, Condition: model.ConditionNew, Title: "Sofa", Status: model.ItemStatusReserved},
		{Category: model.CategoryFurniture, Condition: model.ConditionNew, Title: "Sofa", Status: model.ItemStatusCancelled},
	}
	stats := ComputeStats(items)
	assert.Equal(t, 0, stats.ItemCount)
	assert.Equal(t, 0, stats.TotalCO2)
	assert.Equal(t, 0, stats.ReuseRate)
	assert.Nil(t, stats.TopCategory)
}

func TestComputeStatsTieKeepsFirstEncountered(t *testing.T) {
	items := []model.Item{
		donated(model.CategoryGardening, model.ConditionGood, "Vaso"),
		donated(model.CategoryHome, model.ConditionGood, "Vaso"),
	}
	stats := ComputeStats(items)
	require.NotNil(t, stats.TopCategory)
	assert.Equal(t, model.CategoryGardening, stats.TopCategory.Name)

	stats = ComputeStats([]model.Item{items[1], items[0]})
	require.NotNil(t, stats.TopCategory)
	assert.Equal(t, model.CategoryHome, stats.TopCategory.Name)
}

func TestComputeStatsSumsPerCategory(t *testing.T) {
	items := []model.Item{
		donated(model.CategoryElectronics, model.ConditionNew, "notebook"),
		donated(model.CategoryElectronics, model.ConditionNew, "notebook"),
		donated(model.CategoryBooks, model.ConditionGood, "revista"),
	}
	stats := ComputeStats(items)
	assert.InDelta(t, 797.8, stats.CO2ByCategory[model.CategoryElectronics], 1e-9)
	assert.Equal(t, 0.0, stats.CO2ByCategory[model.CategoryBooks])
	assert.Contains(t, stats.CO2ByCategory, model.CategoryBooks)
	assert.Equal(t, 798, stats.TotalCO2)
	assert.Equal(t, 100, stats.ReuseRate)
}

func TestEquivalentsFor(t *testing.T) {
	eq := EquivalentsFor(168)
	assert.Equal(t, Equivalents{Trees: 8, CarKm: 672, Flights: 2, Smartphones: 2, Months: 20}, eq)
	assert.Equal(t, Equivalents{}, EquivalentsFor(0))
}
