// Package market simulates monthly competitor sales for every
// (competitor, cancer type, stage, drug) combination using a two-phase
// curve: logistic growth up to a peak month, exponential decay after it.
package market

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/onco-rwe-platform/internal/domain"
	"github.com/onco-rwe-platform/internal/simulate"
)

// Competitors is the fixed competitor set in the sales dataset
var Competitors = []string{"PharmaA", "PharmaB", "PharmaC"}

const monthLayout = "2006-01"

// curveParams drives one competitor's sales trajectory
type curveParams struct {
	PeakMonth int
	Peak      float64
	GrowRate  float64
	DecayRate float64
}

// TwoPhaseCurve evaluates the sales level at month index t. Before the peak
// the curve follows a logistic ramp with its midpoint at peakMonth/2, so it
// sits near the peak level by the peak month; from the peak onward it decays
// exponentially toward zero.
func TwoPhaseCurve(t, peakMonth int, peak, growRate, decayRate float64) float64 {
	if t < peakMonth {
		mid := float64(peakMonth) / 2.0
		return peak / (1.0 + math.Exp(-growRate*(float64(t)-mid)))
	}
	return peak * math.Exp(-decayRate*float64(t-peakMonth))
}

// monthsBetween lists the first-of-month dates in [start, end] inclusive
func monthsBetween(start, end time.Time) []time.Time {
	var months []time.Time
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		months = append(months, cur)
	}
	return months
}

// ParseMonth parses a YYYY-MM month label
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing month %q: %w", s, err)
	}
	return t, nil
}

// sampleParams draws a competitor's curve parameters: peak somewhere in the
// middle 30-70% of the window, peak level 3000-15000, growth 0.2-1.0,
// decay 0.05-0.3.
func sampleParams(rng *rand.Rand, numMonths int) curveParams {
	lo := int(float64(numMonths) * 0.3)
	hi := int(float64(numMonths) * 0.7)
	if hi <= lo {
		hi = lo + 1
	}
	return curveParams{
		PeakMonth: lo + rng.Intn(hi-lo+1),
		Peak:      3000 + rng.Float64()*12000,
		GrowRate:  0.2 + rng.Float64()*0.8,
		DecayRate: 0.05 + rng.Float64()*0.25,
	}
}

// Generate builds the monthly sales table for [startMonth, endMonth], both
// YYYY-MM labels. Each competitor gets one random curve for the window; each
// (cancer type, stage, drug) leg applies a +-20% variation factor and +-5%
// noise on top of it, clamped at zero.
func Generate(rng *rand.Rand, startMonth, endMonth string) ([]domain.SalesRecord, error) {
	start, err := ParseMonth(startMonth)
	if err != nil {
		return nil, err
	}
	end, err := ParseMonth(endMonth)
	if err != nil {
		return nil, err
	}

	months := monthsBetween(start, end)
	params := make(map[string]curveParams, len(Competitors))
	for _, comp := range Competitors {
		params[comp] = sampleParams(rng, len(months))
	}

	var rows []domain.SalesRecord
	for monthIdx, m := range months {
		label := m.Format(monthLayout)
		for _, comp := range Competitors {
			p := params[comp]
			base := TwoPhaseCurve(monthIdx, p.PeakMonth, p.Peak, p.GrowRate, p.DecayRate)

			for _, cancer := range domain.Diseases {
				for stage := domain.MinStage; stage <= domain.MaxStage; stage++ {
					for _, drug := range simulate.DrugsByStage[stage] {
						sales := base * (0.8 + rng.Float64()*0.4)
						sales += sales * (-0.05 + rng.Float64()*0.1)
						if sales < 0 {
							sales = 0
						}

						rows = append(rows, domain.SalesRecord{
							Month:      label,
							Competitor: comp,
							CancerType: cancer,
							Stage:      stage,
							Drug:       drug,
							Sales:      int(math.Round(sales)),
						})
					}
				}
			}
		}
	}
	return rows, nil
}
