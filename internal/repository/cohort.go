// Package repository persists generated cohorts into the PostgreSQL warehouse.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/onco-rwe-platform/internal/dataset"
	"github.com/onco-rwe-platform/internal/domain"
)

// CohortRepository handles cohort persistence
type CohortRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewCohortRepository creates a new cohort repository
func NewCohortRepository(db *pgxpool.Pool, logger *logrus.Logger) *CohortRepository {
	return &CohortRepository{
		db:  db,
		log: logger,
	}
}

// Save stores a cohort with all patients and treatment cycles in one transaction
func (r *CohortRepository) Save(ctx context.Context, cohort *domain.Cohort) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning cohort transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO cohorts (run_id, seed, patient_count, generated_at) VALUES ($1, $2, $3, $4)`,
		cohort.RunID, cohort.Seed, len(cohort.Patients), cohort.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting cohort %s: %w", cohort.RunID, err)
	}

	batch := &pgx.Batch{}
	for _, p := range cohort.Patients {
		batch.Queue(
			`INSERT INTO patients (
				run_id, patient_id, name, age, gender, ethnicity, location,
				diagnosis, treatment_type, treatment_history, adverse_events,
				comorbidities, hospitalizations, os_months, pfs_months,
				date_of_death, number_of_cycles
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			cohort.RunID, p.PatientID, p.Name, p.Age, p.Gender, p.Ethnicity, p.Location,
			p.Diagnosis, p.TreatmentType, p.TreatmentHistory, p.AdverseEvents,
			p.Comorbidities, p.Hospitalizations, p.OSMonths, p.PFSMonths,
			p.DateOfDeath, p.NumberOfCycles,
		)

		for _, c := range p.Cycles {
			expr, err := json.Marshal(c.GeneExpression)
			if err != nil {
				return fmt.Errorf("encoding gene expression for %s: %w", p.PatientID, err)
			}
			batch.Queue(
				`INSERT INTO treatment_cycles (
					run_id, patient_id, cycle_number, cycle_date, disease_stage,
					therapy_segment, drugs_used, gene_expression, outcome
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				cohort.RunID, p.PatientID, c.CycleNumber, c.CycleDate, c.DiseaseStage,
				c.TherapySegment, c.DrugsUsed, expr, c.Outcome,
			)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id": cohort.RunID,
			"error":  err,
		}).Error("Failed to persist cohort rows")
		return fmt.Errorf("persisting cohort rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing cohort %s: %w", cohort.RunID, err)
	}

	r.log.WithFields(logrus.Fields{
		"run_id":   cohort.RunID,
		"patients": len(cohort.Patients),
	}).Info("Cohort persisted to warehouse")

	return nil
}

// Get retrieves a cohort and all its patients and cycles by run ID
func (r *CohortRepository) Get(ctx context.Context, runID string) (*domain.Cohort, error) {
	var cohort domain.Cohort
	err := r.db.QueryRow(ctx,
		`SELECT run_id, seed, generated_at FROM cohorts WHERE run_id = $1`,
		runID,
	).Scan(&cohort.RunID, &cohort.Seed, &cohort.GeneratedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("cohort %s: %w", runID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting cohort %s: %w", runID, err)
	}

	patients, err := r.loadPatients(ctx, runID)
	if err != nil {
		return nil, err
	}
	cohort.Patients = patients

	return &cohort, nil
}

func (r *CohortRepository) loadPatients(ctx context.Context, runID string) ([]domain.Patient, error) {
	rows, err := r.db.Query(ctx,
		`SELECT patient_id, name, age, gender, ethnicity, location, diagnosis,
			treatment_type, treatment_history, adverse_events, comorbidities,
			hospitalizations, os_months, pfs_months, date_of_death, number_of_cycles
		FROM patients WHERE run_id = $1 ORDER BY patient_id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying patients for %s: %w", runID, err)
	}
	defer rows.Close()

	var patients []domain.Patient
	index := make(map[string]int)
	for rows.Next() {
		var p domain.Patient
		err := rows.Scan(
			&p.PatientID, &p.Name, &p.Age, &p.Gender, &p.Ethnicity, &p.Location,
			&p.Diagnosis, &p.TreatmentType, &p.TreatmentHistory, &p.AdverseEvents,
			&p.Comorbidities, &p.Hospitalizations, &p.OSMonths, &p.PFSMonths,
			&p.DateOfDeath, &p.NumberOfCycles,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning patient row: %w", err)
		}
		index[p.PatientID] = len(patients)
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading patient rows: %w", err)
	}

	cycleRows, err := r.db.Query(ctx,
		`SELECT patient_id, cycle_number, cycle_date, disease_stage,
			therapy_segment, drugs_used, gene_expression, outcome
		FROM treatment_cycles WHERE run_id = $1 ORDER BY patient_id, cycle_number`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cycles for %s: %w", runID, err)
	}
	defer cycleRows.Close()

	for cycleRows.Next() {
		var patientID string
		var c domain.TreatmentCycle
		var expr []byte
		err := cycleRows.Scan(
			&patientID, &c.CycleNumber, &c.CycleDate, &c.DiseaseStage,
			&c.TherapySegment, &c.DrugsUsed, &expr, &c.Outcome,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning cycle row: %w", err)
		}
		if err := json.Unmarshal(expr, &c.GeneExpression); err != nil {
			return nil, fmt.Errorf("decoding gene expression for %s: %w", patientID, err)
		}
		if i, ok := index[patientID]; ok {
			patients[i].Cycles = append(patients[i].Cycles, c)
		}
	}
	if err := cycleRows.Err(); err != nil {
		return nil, fmt.Errorf("reading cycle rows: %w", err)
	}

	return patients, nil
}

// CohortSummary is one row in the cohort listing
type CohortSummary struct {
	RunID        string    `json:"run_id"`
	Seed         int64     `json:"seed"`
	PatientCount int       `json:"patient_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// List returns cohort summaries, newest first
func (r *CohortRepository) List(ctx context.Context, limit int) ([]CohortSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT run_id, seed, patient_count, generated_at
		FROM cohorts ORDER BY generated_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing cohorts: %w", err)
	}
	defer rows.Close()

	var summaries []CohortSummary
	for rows.Next() {
		var s CohortSummary
		if err := rows.Scan(&s.RunID, &s.Seed, &s.PatientCount, &s.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scanning cohort summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Delete removes a cohort and all dependent rows
func (r *CohortRepository) Delete(ctx context.Context, runID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cohorts WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("deleting cohort %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cohort %s: %w", runID, domain.ErrNotFound)
	}

	r.log.WithField("run_id", runID).Info("Cohort deleted from warehouse")
	return nil
}

// SaveClaims stores flattened claims rows for a cohort
func (r *CohortRepository) SaveClaims(ctx context.Context, runID string, claims []dataset.ClaimRow) error {
	batch := &pgx.Batch{}
	for _, c := range claims {
		batch.Queue(
			`INSERT INTO claims (
				run_id, claim_id, patient_id, date_of_service, drugs_administered,
				procedure_code, cost_of_treatment, cost_of_diagnostics, total_bill,
				paid_by_insurance, paid_by_patient
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			runID, c.ClaimID, c.PatientID, c.DateOfService, c.DrugsAdministered,
			c.ProcedureCode, c.CostOfTreatment, c.CostOfDiagnostics, c.TotalBill,
			c.PaidByInsurance, c.PaidByPatient,
		)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("persisting claims for %s: %w", runID, err)
	}

	r.log.WithFields(logrus.Fields{
		"run_id": runID,
		"claims": len(claims),
	}).Info("Claims persisted to warehouse")
	return nil
}
