package epi

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-rwe-platform/internal/domain"
	"github.com/onco-rwe-platform/internal/simulate"
)

func TestGenerate_Shape(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	records := Generate(rng, 2018, 2020)

	wantRows := 3 * len(simulate.USStates) * len(domain.Diseases)
	require.Len(t, records, wantRows)
}

func TestGenerate_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	records := Generate(rng, 2019, 2021)

	for _, r := range records {
		assert.GreaterOrEqual(t, r.Year, 2019)
		assert.LessOrEqual(t, r.Year, 2021)
		assert.NotEqual(t, "Unknown", r.Region, "state %s has no region", r.State)

		assert.GreaterOrEqual(t, r.Population, 200_000)
		assert.LessOrEqual(t, r.Population, 40_000_000)

		assert.LessOrEqual(t, r.MortalityCount, r.IncidenceCount, "mortality cannot exceed incidence")
		assert.GreaterOrEqual(t, r.PrevalenceCount, r.IncidenceCount)
		assert.LessOrEqual(t, r.PrevalenceCount, r.IncidenceCount*5)

		assert.GreaterOrEqual(t, r.CancerStage, domain.MinStage)
		assert.LessOrEqual(t, r.CancerStage, domain.MaxStage)

		assert.InDelta(t, float64(r.IncidenceCount)/float64(r.Population)*100_000, r.IncidenceRate, 0.011)
	}
}

func TestAssignRegion(t *testing.T) {
	assert.Equal(t, "Northeast", AssignRegion("NY"))
	assert.Equal(t, "West", AssignRegion("CA"))
	assert.Equal(t, "South", AssignRegion("TX"))
	assert.Equal(t, "Midwest", AssignRegion("OH"))
	assert.Equal(t, "Unknown", AssignRegion("PR"))
}

func TestFilter_Apply(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	records := Generate(rng, 2015, 2022)

	f := Filter{
		StartYear:   2017,
		EndYear:     2019,
		CancerTypes: []domain.Disease{domain.BreastCancer, domain.Leukemia},
		Stages:      []int{3, 4},
	}
	filtered := f.Apply(records)

	require.NotEmpty(t, filtered)
	for _, r := range filtered {
		assert.GreaterOrEqual(t, r.Year, 2017)
		assert.LessOrEqual(t, r.Year, 2019)
		assert.Contains(t, f.CancerTypes, r.CancerType)
		assert.Contains(t, f.Stages, r.CancerStage)
	}
}

func TestFilter_EmptySetsMeanAll(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	records := Generate(rng, 2020, 2020)

	f := Filter{StartYear: 2020, EndYear: 2020}
	assert.Len(t, f.Apply(records), len(records))
}

func TestAggregate_SumsByYearAndType(t *testing.T) {
	records := []domain.PrevalenceRecord{
		{Year: 2020, CancerType: domain.LungCancer, PrevalenceCount: 10, IncidenceCount: 4},
		{Year: 2020, CancerType: domain.LungCancer, PrevalenceCount: 5, IncidenceCount: 2},
		{Year: 2021, CancerType: domain.LungCancer, PrevalenceCount: 7, IncidenceCount: 3},
		{Year: 2020, CancerType: domain.Lymphoma, PrevalenceCount: 2, IncidenceCount: 1},
	}

	series := Aggregate(records, MetricPrevalence)
	require.Len(t, series, 2)

	// Series are sorted by cancer type for a stable chart legend.
	assert.Equal(t, domain.LungCancer, series[0].CancerType)
	assert.Equal(t, []domain.SeriesPoint{{Year: 2020, Count: 15}, {Year: 2021, Count: 7}}, series[0].Points)
	assert.Equal(t, []domain.SeriesPoint{{Year: 2020, Count: 2}}, series[1].Points)

	incidence := Aggregate(records, MetricIncidence)
	assert.Equal(t, 6, incidence[0].Points[0].Count)
}
