// Package epi builds the synthetic epidemiology table behind the dashboard:
// per-year, per-state prevalence, incidence, and mortality figures for each
// tracked cancer type, plus the filtering and aggregation the line charts use.
package epi

import (
	"math"
	"math/rand"
	"sort"

	"github.com/onco-rwe-platform/internal/domain"
	"github.com/onco-rwe-platform/internal/simulate"
)

// usRegions groups state abbreviations into census regions
var usRegions = map[string][]string{
	"Northeast": {"CT", "ME", "MA", "NH", "NJ", "NY", "PA", "RI", "VT"},
	"Midwest":   {"IL", "IN", "IA", "KS", "MI", "MN", "MO", "NE", "ND", "OH", "SD", "WI"},
	"South":     {"AL", "AR", "DE", "FL", "GA", "KY", "LA", "MD", "MS", "NC", "OK", "SC", "TN", "TX", "VA", "WV"},
	"West":      {"AK", "AZ", "CA", "CO", "HI", "ID", "MT", "NV", "NM", "OR", "UT", "WA", "WY"},
}

// countRange is an inclusive integer sampling range
type countRange struct {
	Min int
	Max int
}

// incidence and mortality base ranges per cancer type; unknown types use the fallback
var (
	incidenceRanges = map[domain.Disease]countRange{
		domain.LungCancer:       {500, 6000},
		domain.BreastCancer:     {1000, 7000},
		domain.ProstateCancer:   {800, 5000},
		domain.ColorectalCancer: {700, 4000},
		domain.Leukemia:         {300, 2000},
		domain.Lymphoma:         {300, 2200},
	}
	mortalityRanges = map[domain.Disease]countRange{
		domain.LungCancer:       {200, 4500},
		domain.BreastCancer:     {300, 3000},
		domain.ProstateCancer:   {200, 2000},
		domain.ColorectalCancer: {200, 1500},
		domain.Leukemia:         {100, 1000},
		domain.Lymphoma:         {100, 800},
	}
	fallbackIncidence = countRange{500, 5000}
	fallbackMortality = countRange{200, 2000}
)

const (
	minStatePopulation = 200_000
	maxStatePopulation = 40_000_000
	prevalenceFactor   = 5
	per100k            = 100_000
)

// AssignRegion returns the census region for a state abbreviation,
// or "Unknown" for anything outside the 50-state table.
func AssignRegion(state string) string {
	for region, states := range usRegions {
		for _, s := range states {
			if s == state {
				return region
			}
		}
	}
	return "Unknown"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func intBetween(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

// Generate builds the prevalence table for [startYear, endYear] across all
// states and tracked cancer types. Mortality never exceeds incidence, and
// prevalence lands in [incidence, 5*incidence]. Rates are per 100k, rounded
// to 2 decimals.
func Generate(rng *rand.Rand, startYear, endYear int) []domain.PrevalenceRecord {
	var records []domain.PrevalenceRecord

	for year := startYear; year <= endYear; year++ {
		for _, state := range simulate.USStates {
			region := AssignRegion(state)
			population := intBetween(rng, minStatePopulation, maxStatePopulation)

			for _, cancer := range domain.Diseases {
				incRange, ok := incidenceRanges[cancer]
				if !ok {
					incRange = fallbackIncidence
				}
				mortRange, ok := mortalityRanges[cancer]
				if !ok {
					mortRange = fallbackMortality
				}

				incidence := intBetween(rng, incRange.Min, incRange.Max)
				mortCap := mortRange.Max
				if incidence < mortCap {
					mortCap = incidence
				}
				mortality := intBetween(rng, mortRange.Min, mortCap)
				prevalence := intBetween(rng, incidence, incidence*prevalenceFactor)

				records = append(records, domain.PrevalenceRecord{
					Year:            year,
					State:           state,
					Region:          region,
					CancerType:      cancer,
					CancerStage:     intBetween(rng, domain.MinStage, domain.MaxStage),
					Population:      population,
					PrevalenceCount: prevalence,
					PrevalenceRate:  round2(float64(prevalence) / float64(population) * per100k),
					IncidenceCount:  incidence,
					IncidenceRate:   round2(float64(incidence) / float64(population) * per100k),
					MortalityCount:  mortality,
					MortalityRate:   round2(float64(mortality) / float64(population) * per100k),
				})
			}
		}
	}
	return records
}

// Filter selects records matching a year range plus cancer-type and stage
// sets; empty sets mean "all".
type Filter struct {
	StartYear   int
	EndYear     int
	CancerTypes []domain.Disease
	Stages      []int
}

func (f Filter) matches(r domain.PrevalenceRecord) bool {
	if r.Year < f.StartYear || r.Year > f.EndYear {
		return false
	}
	if len(f.CancerTypes) > 0 {
		found := false
		for _, c := range f.CancerTypes {
			if r.CancerType == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Stages) > 0 {
		found := false
		for _, s := range f.Stages {
			if r.CancerStage == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply returns the records the filter admits
func (f Filter) Apply(records []domain.PrevalenceRecord) []domain.PrevalenceRecord {
	var out []domain.PrevalenceRecord
	for _, r := range records {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Metric selects which count a chart series aggregates
type Metric string

const (
	MetricPrevalence Metric = "prevalence"
	MetricIncidence  Metric = "incidence"
	MetricMortality  Metric = "mortality"
)

// Aggregate sums the chosen metric by (year, cancer type), producing one
// sorted line series per cancer type for the dashboard charts.
func Aggregate(records []domain.PrevalenceRecord, metric Metric) []domain.ChartSeries {
	sums := map[domain.Disease]map[int]int{}
	for _, r := range records {
		var count int
		switch metric {
		case MetricIncidence:
			count = r.IncidenceCount
		case MetricMortality:
			count = r.MortalityCount
		default:
			count = r.PrevalenceCount
		}
		if sums[r.CancerType] == nil {
			sums[r.CancerType] = map[int]int{}
		}
		sums[r.CancerType][r.Year] += count
	}

	var series []domain.ChartSeries
	for cancer, byYear := range sums {
		years := make([]int, 0, len(byYear))
		for y := range byYear {
			years = append(years, y)
		}
		sort.Ints(years)

		points := make([]domain.SeriesPoint, 0, len(years))
		for _, y := range years {
			points = append(points, domain.SeriesPoint{Year: y, Count: byYear[y]})
		}
		series = append(series, domain.ChartSeries{CancerType: cancer, Points: points})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].CancerType < series[j].CancerType
	})
	return series
}
