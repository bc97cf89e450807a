// Package dataset flattens generated cohorts into the row-oriented tables
// consumed by tabular exports and the dashboard API: an RWE table keyed by
// drug administration, a TCGA-style expression table, an EHR table, a
// per-patient registry, and a claims table.
package dataset

import (
	"sort"
	"strings"
	"time"

	"github.com/onco-rwe-platform/internal/domain"
)

const dateLayout = "2006-01-02"

// RWERow is one drug administration with the cycle's expression panel.
// One row per (patient, cycle, drug).
type RWERow struct {
	PatientID      string             `json:"patient_id"`
	CycleNumber    int                `json:"cycle_number"`
	CycleDate      string             `json:"cycle_date"`
	DrugName       string             `json:"drug_name"`
	DiseaseStage   int                `json:"disease_stage"`
	TherapySegment string             `json:"therapy_segment"`
	Outcome        domain.Outcome     `json:"treatment_outcome"`
	Genes          map[string]float64 `json:"genes"`
}

// TCGARow is one expression snapshot. One row per (patient, cycle).
type TCGARow struct {
	PatientID   string             `json:"patient_id"`
	CycleNumber int                `json:"cycle_number"`
	CycleDate   string             `json:"cycle_date"`
	Genes       map[string]float64 `json:"genes"`
}

// EHRRow joins demographics onto each cycle. One row per (patient, cycle).
type EHRRow struct {
	PatientID        string         `json:"patient_id"`
	Name             string         `json:"name"`
	Age              int            `json:"age"`
	Gender           string         `json:"gender"`
	Ethnicity        string         `json:"ethnicity"`
	Location         string         `json:"location"`
	Diagnosis        domain.Disease `json:"diagnosis"`
	TreatmentType    string         `json:"treatment_type"`
	TreatmentHistory string         `json:"treatment_history"`
	AdverseEvents    string         `json:"adverse_events"`
	Comorbidities    string         `json:"comorbidities"`
	Hospitalizations int            `json:"number_of_hospitalizations"`
	DateOfDeath      string         `json:"date_of_death,omitempty"`
	CycleNumber      int            `json:"cycle_number"`
	CycleDate        string         `json:"cycle_date"`
	DiseaseStage     int            `json:"disease_stage"`
	TherapySegment   string         `json:"therapy_segment"`
	Outcome          domain.Outcome `json:"treatment_outcome"`
	DrugsUsed        string         `json:"drugs_used"`
}

// RegistryRow summarizes one patient across their whole timeline
type RegistryRow struct {
	PatientID        string         `json:"patient_id"`
	Name             string         `json:"name"`
	Age              int            `json:"age"`
	Gender           string         `json:"gender"`
	Ethnicity        string         `json:"ethnicity"`
	Location         string         `json:"location"`
	Diagnosis        domain.Disease `json:"diagnosis"`
	TreatmentType    string         `json:"treatment_type"`
	TreatmentHistory string         `json:"treatment_history"`
	AdverseEvents    string         `json:"adverse_events"`
	Comorbidities    string         `json:"comorbidities"`
	Hospitalizations int            `json:"number_of_hospitalizations"`
	FinalOutcome     string         `json:"final_outcome"`
	DateOfDeath      string         `json:"date_of_death,omitempty"`
	NumberOfCycles   int            `json:"number_of_cycles"`
	FirstCycleDate   string         `json:"first_cycle_date,omitempty"`
	LastCycleDate    string         `json:"last_cycle_date,omitempty"`
	OSMonths         int            `json:"os_months"`
	PFSMonths        int            `json:"pfs_months"`
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatDeathDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

// BuildRWE explodes a cohort into one row per administered drug
func BuildRWE(cohort domain.Cohort) []RWERow {
	var rows []RWERow
	for _, p := range cohort.Patients {
		for _, c := range p.Cycles {
			for _, drug := range c.DrugsUsed {
				rows = append(rows, RWERow{
					PatientID:      p.PatientID,
					CycleNumber:    c.CycleNumber,
					CycleDate:      formatDate(c.CycleDate),
					DrugName:       drug,
					DiseaseStage:   c.DiseaseStage,
					TherapySegment: c.TherapySegment,
					Outcome:        c.Outcome,
					Genes:          c.GeneExpression.Clone(),
				})
			}
		}
	}
	return rows
}

// BuildTCGA emits one expression row per patient cycle
func BuildTCGA(cohort domain.Cohort) []TCGARow {
	var rows []TCGARow
	for _, p := range cohort.Patients {
		for _, c := range p.Cycles {
			rows = append(rows, TCGARow{
				PatientID:   p.PatientID,
				CycleNumber: c.CycleNumber,
				CycleDate:   formatDate(c.CycleDate),
				Genes:       c.GeneExpression.Clone(),
			})
		}
	}
	return rows
}

// BuildEHR joins patient demographics onto every cycle, with multi-valued
// fields collapsed into comma-separated strings.
func BuildEHR(cohort domain.Cohort) []EHRRow {
	var rows []EHRRow
	for _, p := range cohort.Patients {
		history := strings.Join(p.TreatmentHistory, ", ")
		events := strings.Join(p.AdverseEvents, ", ")
		comorbid := strings.Join(p.Comorbidities, ", ")

		for _, c := range p.Cycles {
			rows = append(rows, EHRRow{
				PatientID:        p.PatientID,
				Name:             p.Name,
				Age:              p.Age,
				Gender:           p.Gender,
				Ethnicity:        p.Ethnicity,
				Location:         p.Location,
				Diagnosis:        p.Diagnosis,
				TreatmentType:    p.TreatmentType,
				TreatmentHistory: history,
				AdverseEvents:    events,
				Comorbidities:    comorbid,
				Hospitalizations: p.Hospitalizations,
				DateOfDeath:      formatDeathDate(p.DateOfDeath),
				CycleNumber:      c.CycleNumber,
				CycleDate:        formatDate(c.CycleDate),
				DiseaseStage:     c.DiseaseStage,
				TherapySegment:   c.TherapySegment,
				Outcome:          c.Outcome,
				DrugsUsed:        strings.Join(c.DrugsUsed, ", "),
			})
		}
	}
	return rows
}

// BuildRegistry emits one summary row per patient. Patients without any
// emitted cycle are recorded with a "No Treatment" final outcome.
func BuildRegistry(cohort domain.Cohort) []RegistryRow {
	var rows []RegistryRow
	for _, p := range cohort.Patients {
		finalOutcome := "No Treatment"
		if len(p.Cycles) > 0 {
			finalOutcome = string(p.Cycles[len(p.Cycles)-1].Outcome)
		}

		dates := make([]string, 0, len(p.Cycles))
		for _, c := range p.Cycles {
			dates = append(dates, formatDate(c.CycleDate))
		}
		sort.Strings(dates)

		var first, last string
		if len(dates) > 0 {
			first = dates[0]
			last = dates[len(dates)-1]
		}

		rows = append(rows, RegistryRow{
			PatientID:        p.PatientID,
			Name:             p.Name,
			Age:              p.Age,
			Gender:           p.Gender,
			Ethnicity:        p.Ethnicity,
			Location:         p.Location,
			Diagnosis:        p.Diagnosis,
			TreatmentType:    p.TreatmentType,
			TreatmentHistory: strings.Join(p.TreatmentHistory, ", "),
			AdverseEvents:    strings.Join(p.AdverseEvents, ", "),
			Comorbidities:    strings.Join(p.Comorbidities, ", "),
			Hospitalizations: p.Hospitalizations,
			FinalOutcome:     finalOutcome,
			DateOfDeath:      formatDeathDate(p.DateOfDeath),
			NumberOfCycles:   p.NumberOfCycles,
			FirstCycleDate:   first,
			LastCycleDate:    last,
			OSMonths:         p.OSMonths,
			PFSMonths:        p.PFSMonths,
		})
	}
	return rows
}
