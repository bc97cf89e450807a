package domain

import (
	"time"
)

// Core Enums and Types

// Disease represents a cancer diagnosis tracked by the simulator
type Disease string

const (
	BreastCancer     Disease = "Breast Cancer"
	LungCancer       Disease = "Lung Cancer"
	ColorectalCancer Disease = "Colorectal Cancer"
	ProstateCancer   Disease = "Prostate Cancer"
	Leukemia         Disease = "Leukemia"
	Lymphoma         Disease = "Lymphoma"
)

// Diseases lists every known diagnosis in catalog order
var Diseases = []Disease{
	BreastCancer,
	LungCancer,
	ColorectalCancer,
	ProstateCancer,
	Leukemia,
	Lymphoma,
}

// Outcome represents the clinical result recorded for a treatment cycle
type Outcome string

const (
	CompleteResponse   Outcome = "Complete Response"
	PartialResponse    Outcome = "Partial Response"
	StableDisease      Outcome = "Stable Disease"
	ProgressiveDisease Outcome = "Progressive Disease"
	Death              Outcome = "Death"
	Discontinued       Outcome = "Discontinued"
)

// Outcomes lists the full outcome enumeration; each draw is uniform across it
var Outcomes = []Outcome{
	CompleteResponse,
	PartialResponse,
	StableDisease,
	ProgressiveDisease,
	Death,
	Discontinued,
}

// Terminal reports whether the outcome ends a timeline
func (o Outcome) Terminal() bool {
	return o == Death || o == Discontinued
}

// Stage bounds. Disease stage only ever moves forward and never passes MaxStage.
const (
	MinStage = 1
	MaxStage = 4
)

// GeneExpression maps gene symbols to expression levels rounded to 2 decimals
type GeneExpression map[string]float64

// Clone returns an independent copy so each cycle owns its own snapshot
func (g GeneExpression) Clone() GeneExpression {
	out := make(GeneExpression, len(g))
	for gene, val := range g {
		out[gene] = val
	}
	return out
}

// TreatmentCycle is one administered cycle in a patient timeline.
// Records are immutable once emitted.
type TreatmentCycle struct {
	CycleNumber    int            `json:"cycle_number"`
	CycleDate      time.Time      `json:"cycle_date"`
	DiseaseStage   int            `json:"disease_stage"`
	TherapySegment string         `json:"therapy_segment"`
	DrugsUsed      []string       `json:"drugs_used"`
	GeneExpression GeneExpression `json:"gene_expression"`
	Outcome        Outcome        `json:"treatment_outcome"`
}

// Patient is a fully sampled synthetic patient with their treatment timeline
type Patient struct {
	PatientID          string           `json:"patient_id"`
	Name               string           `json:"name"`
	Age                int              `json:"age"`
	Gender             string           `json:"gender"`
	Ethnicity          string           `json:"ethnicity"`
	Location           string           `json:"location"`
	Diagnosis          Disease          `json:"diagnosis"`
	TreatmentType      string           `json:"treatment_type"`
	TreatmentHistory   []string         `json:"treatment_history"`
	AdverseEvents      []string         `json:"adverse_events"`
	Comorbidities      []string         `json:"comorbidities"`
	Hospitalizations   int              `json:"number_of_hospitalizations"`
	OSMonths           int              `json:"os_months"`
	PFSMonths          int              `json:"pfs_months"`
	DateOfDeath        *time.Time       `json:"date_of_death,omitempty"`
	NumberOfCycles     int              `json:"number_of_cycles"`
	Cycles             []TreatmentCycle `json:"cycles"`
}

// Cohort is a generated set of patients identified by a run ID and seed
type Cohort struct {
	RunID       string    `json:"run_id"`
	Seed        int64     `json:"seed"`
	GeneratedAt time.Time `json:"generated_at"`
	Patients    []Patient `json:"patients"`
}

// PrevalenceRecord is one row of the synthetic epidemiology table
type PrevalenceRecord struct {
	Year            int     `json:"year"`
	State           string  `json:"state"`
	Region          string  `json:"region"`
	CancerType      Disease `json:"cancer_type"`
	CancerStage     int     `json:"cancer_stage"`
	Population      int     `json:"population"`
	PrevalenceCount int     `json:"prevalence_count"`
	PrevalenceRate  float64 `json:"prevalence_rate"`
	IncidenceCount  int     `json:"incidence_count"`
	IncidenceRate   float64 `json:"incidence_rate"`
	MortalityCount  int     `json:"mortality_count"`
	MortalityRate   float64 `json:"mortality_rate"`
}

// SalesRecord is one monthly competitor sales observation
type SalesRecord struct {
	Month      string  `json:"month"`
	Competitor string  `json:"competitor"`
	CancerType Disease `json:"cancer_type"`
	Stage      int     `json:"stage"`
	Drug       string  `json:"drug"`
	Sales      int     `json:"sales"`
}

// SeriesPoint is one aggregated point on a dashboard line chart
type SeriesPoint struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// ChartSeries is one line on a dashboard chart, keyed by cancer type
type ChartSeries struct {
	CancerType Disease       `json:"cancer_type"`
	Points     []SeriesPoint `json:"points"`
}
