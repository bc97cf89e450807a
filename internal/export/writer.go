package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/onco-rwe-platform/internal/dataset"
	"github.com/onco-rwe-platform/internal/domain"
	"github.com/onco-rwe-platform/internal/simulate"
)

const (
	contentTypeCSV  = "text/csv"
	contentTypeJSON = "application/json"
)

// Exporter renders every flattened table for a cohort and pushes the
// artifacts into a sink.
type Exporter struct {
	sink Sink
	log  *logrus.Logger
}

// NewExporter wires a sink.
func NewExporter(sink Sink, logger *logrus.Logger) *Exporter {
	return &Exporter{sink: sink, log: logger}
}

// ExportCohort writes the five CSV tables plus the raw cohort JSON under
// <run_id>/. Claims amounts are reseeded from the cohort seed so repeated
// exports of one run are identical.
func (e *Exporter) ExportCohort(ctx context.Context, cohort *domain.Cohort) error {
	artifacts := []struct {
		name        string
		contentType string
		render      func() ([]byte, error)
	}{
		{"rwe.csv", contentTypeCSV, func() ([]byte, error) {
			return renderRWECSV(dataset.BuildRWE(*cohort))
		}},
		{"tcga.csv", contentTypeCSV, func() ([]byte, error) {
			return renderTCGACSV(dataset.BuildTCGA(*cohort))
		}},
		{"ehr.csv", contentTypeCSV, func() ([]byte, error) {
			return renderEHRCSV(dataset.BuildEHR(*cohort))
		}},
		{"registry.csv", contentTypeCSV, func() ([]byte, error) {
			return renderRegistryCSV(dataset.BuildRegistry(*cohort))
		}},
		{"claims.csv", contentTypeCSV, func() ([]byte, error) {
			rng := rand.New(rand.NewSource(cohort.Seed))
			return renderClaimsCSV(dataset.BuildClaims(rng, *cohort))
		}},
		{"cohort.json", contentTypeJSON, func() ([]byte, error) {
			return json.MarshalIndent(cohort, "", "  ")
		}},
	}

	for _, artifact := range artifacts {
		data, err := artifact.render()
		if err != nil {
			return fmt.Errorf("rendering %s: %w", artifact.name, err)
		}
		key := cohort.RunID + "/" + artifact.name
		if err := e.sink.Put(ctx, key, artifact.contentType, bytes.NewReader(data)); err != nil {
			return err
		}
	}

	e.log.WithFields(logrus.Fields{
		"run_id":    cohort.RunID,
		"artifacts": len(artifacts),
	}).Info("Cohort exported")

	return nil
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func renderRWECSV(rows []dataset.RWERow) ([]byte, error) {
	header := []string{"patient_id", "cycle_number", "cycle_date", "drug_name",
		"disease_stage", "therapy_segment", "treatment_outcome"}
	header = append(header, simulate.GeneList...)

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		record := []string{
			r.PatientID,
			strconv.Itoa(r.CycleNumber),
			r.CycleDate,
			r.DrugName,
			strconv.Itoa(r.DiseaseStage),
			r.TherapySegment,
			string(r.Outcome),
		}
		for _, gene := range simulate.GeneList {
			record = append(record, formatFloat(r.Genes[gene]))
		}
		records = append(records, record)
	}
	return writeCSV(header, records)
}

func renderTCGACSV(rows []dataset.TCGARow) ([]byte, error) {
	header := []string{"patient_id", "cycle_number", "cycle_date"}
	header = append(header, simulate.GeneList...)

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		record := []string{r.PatientID, strconv.Itoa(r.CycleNumber), r.CycleDate}
		for _, gene := range simulate.GeneList {
			record = append(record, formatFloat(r.Genes[gene]))
		}
		records = append(records, record)
	}
	return writeCSV(header, records)
}

func renderEHRCSV(rows []dataset.EHRRow) ([]byte, error) {
	header := []string{"patient_id", "name", "age", "gender", "ethnicity", "location",
		"diagnosis", "treatment_type", "treatment_history", "adverse_events",
		"comorbidities", "number_of_hospitalizations", "date_of_death",
		"cycle_number", "cycle_date", "disease_stage", "therapy_segment",
		"treatment_outcome", "drugs_used"}

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.PatientID, r.Name, strconv.Itoa(r.Age), r.Gender, r.Ethnicity, r.Location,
			string(r.Diagnosis), r.TreatmentType, r.TreatmentHistory, r.AdverseEvents,
			r.Comorbidities, strconv.Itoa(r.Hospitalizations), r.DateOfDeath,
			strconv.Itoa(r.CycleNumber), r.CycleDate, strconv.Itoa(r.DiseaseStage),
			r.TherapySegment, string(r.Outcome), r.DrugsUsed,
		})
	}
	return writeCSV(header, records)
}

func renderRegistryCSV(rows []dataset.RegistryRow) ([]byte, error) {
	header := []string{"patient_id", "name", "age", "gender", "ethnicity", "location",
		"diagnosis", "treatment_type", "treatment_history", "adverse_events",
		"comorbidities", "number_of_hospitalizations", "final_outcome",
		"date_of_death", "number_of_cycles", "first_cycle_date", "last_cycle_date",
		"os_months", "pfs_months"}

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.PatientID, r.Name, strconv.Itoa(r.Age), r.Gender, r.Ethnicity, r.Location,
			string(r.Diagnosis), r.TreatmentType, r.TreatmentHistory, r.AdverseEvents,
			r.Comorbidities, strconv.Itoa(r.Hospitalizations), r.FinalOutcome,
			r.DateOfDeath, strconv.Itoa(r.NumberOfCycles), r.FirstCycleDate,
			r.LastCycleDate, strconv.Itoa(r.OSMonths), strconv.Itoa(r.PFSMonths),
		})
	}
	return writeCSV(header, records)
}

func renderClaimsCSV(rows []dataset.ClaimRow) ([]byte, error) {
	header := []string{"claim_id", "patient_id", "date_of_service", "drugs_administered",
		"procedure_code", "cost_of_treatment", "cost_of_diagnostics", "total_bill",
		"paid_by_insurance", "paid_by_patient"}

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			strconv.Itoa(r.ClaimID), r.PatientID, r.DateOfService, r.DrugsAdministered,
			r.ProcedureCode, formatFloat(r.CostOfTreatment), formatFloat(r.CostOfDiagnostics),
			formatFloat(r.TotalBill), formatFloat(r.PaidByInsurance), formatFloat(r.PaidByPatient),
		})
	}
	return writeCSV(header, records)
}

// RenderPrevalenceCSV renders the epidemiology table for export.
func RenderPrevalenceCSV(records []domain.PrevalenceRecord) ([]byte, error) {
	header := []string{"year", "state", "region", "cancer_type", "cancer_stage",
		"population", "prevalence_count", "prevalence_rate", "incidence_count",
		"incidence_rate", "mortality_count", "mortality_rate"}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.Year), r.State, r.Region, string(r.CancerType),
			strconv.Itoa(r.CancerStage), strconv.Itoa(r.Population),
			strconv.Itoa(r.PrevalenceCount), formatFloat(r.PrevalenceRate),
			strconv.Itoa(r.IncidenceCount), formatFloat(r.IncidenceRate),
			strconv.Itoa(r.MortalityCount), formatFloat(r.MortalityRate),
		})
	}
	return writeCSV(header, rows)
}

// RenderSalesCSV renders the competitor sales table for export.
func RenderSalesCSV(records []domain.SalesRecord) ([]byte, error) {
	header := []string{"month", "competitor", "cancer_type", "stage", "drug", "sales"}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Month, r.Competitor, string(r.CancerType),
			strconv.Itoa(r.Stage), r.Drug, strconv.Itoa(r.Sales),
		})
	}
	return writeCSV(header, rows)
}

// ExportDataset writes a standalone CSV artifact (epi or market tables).
func (e *Exporter) ExportDataset(ctx context.Context, name string, data []byte) error {
	if !strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".json") {
		return fmt.Errorf("unsupported export artifact %q", name)
	}

	contentType := contentTypeCSV
	if strings.HasSuffix(name, ".json") {
		contentType = contentTypeJSON
	}
	return e.sink.Put(ctx, name, contentType, bytes.NewReader(data))
}
