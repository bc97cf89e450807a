package simulate

import (
	"fmt"
	"time"

	"github.com/onco-rwe-platform/internal/domain"
)

var firstNames = []string{
	"John", "Jane", "Mary", "Michael", "Sarah", "David",
	"Anna", "Peter", "Linda", "James",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia",
	"Miller", "Davis", "Martinez", "Wilson",
}

var genders = []string{"Male", "Female", "Other"}

var treatmentTypes = []string{
	"Chemotherapy",
	"Targeted Therapy",
	"Immunotherapy",
	"Hormonal Therapy",
	"Combination Therapy",
}

var ethnicities = []string{
	"Hispanic or Latino",
	"Not Hispanic or Latino",
	"African American",
	"Asian",
	"White",
	"Unknown",
}

// USStates holds the 50 state abbreviations used for patient locations
var USStates = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA", "HI", "ID", "IL", "IN", "IA",
	"KS", "KY", "LA", "ME", "MD", "MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC", "SD", "TN", "TX", "UT", "VT",
	"VA", "WA", "WV", "WI", "WY",
}

var priorTreatments = []string{
	"Surgery",
	"Radiotherapy",
	"Previous Chemotherapy",
	"Previous Immunotherapy",
	"Hormonal Therapy",
}

var adverseEventPool = []string{
	"Nausea",
	"Fatigue",
	"Neutropenia",
	"Neuropathy",
	"Alopecia",
	"Anemia",
	"Diarrhea",
	"Rash",
}

var comorbidityPool = []string{
	"Hypertension",
	"Diabetes",
	"Hyperlipidemia",
	"Obesity",
	"Chronic Kidney Disease",
	"Depression",
	"Coronary Artery Disease",
}

// patientID formats the 1-based cohort index as a registry identifier
func patientID(i int) string {
	return fmt.Sprintf("PT%03d", i)
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// sample draws up to n distinct entries from pool, n chosen uniformly in [0, max]
func (g *Generator) sample(pool []string, max int) []string {
	n := g.rng.Intn(max + 1)
	out := make([]string, 0, n)
	for _, idx := range g.rng.Perm(len(pool))[:n] {
		out = append(out, pool[idx])
	}
	return out
}

// randomDate picks a uniform calendar day in [Jan 1 startYear, Dec 31 endYear]
func (g *Generator) randomDate(startYear, endYear int) time.Time {
	start := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	days := int(end.Sub(start).Hours()/24) + 1
	return start.AddDate(0, 0, g.rng.Intn(days))
}

func (g *Generator) patientName() string {
	return g.pick(firstNames) + " " + g.pick(lastNames)
}

func (g *Generator) diagnosis() domain.Disease {
	return domain.Diseases[g.rng.Intn(len(domain.Diseases))]
}

// intBetween returns a uniform int in [lo, hi]
func (g *Generator) intBetween(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}
