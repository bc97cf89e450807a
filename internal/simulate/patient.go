package simulate

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/onco-rwe-platform/internal/domain"
)

// Cohort generation defaults, matching the reference dataset
const (
	minAge       = 25
	maxAge       = 85
	minOSMonths  = 6
	maxOSMonths  = 60
	minPFSMonths = 3
	maxPFSMonths = 24
)

// GeneratePatient samples a full synthetic patient: demographics, survival
// horizons, and a treatment timeline. The index is 1-based within a cohort.
func (g *Generator) GeneratePatient(index int) domain.Patient {
	osMonths := g.intBetween(minOSMonths, maxOSMonths)
	pfsCap := osMonths - 1
	if pfsCap > maxPFSMonths {
		pfsCap = maxPFSMonths
	}
	pfsMonths := g.intBetween(minPFSMonths, pfsCap)

	diagnosis := g.diagnosis()
	firstCycle := g.randomDate(g.plan.StartYear, g.plan.EndYear)
	planned := g.intBetween(g.plan.MinCycles, g.plan.MaxCycles)

	cycles, deathDate := g.GenerateTimeline(diagnosis, firstCycle, planned, g.plan.CycleGapDays, nil)

	return domain.Patient{
		PatientID:        patientID(index),
		Name:             g.patientName(),
		Age:              g.intBetween(minAge, maxAge),
		Gender:           g.pick(genders),
		Ethnicity:        g.pick(ethnicities),
		Location:         g.pick(USStates),
		Diagnosis:        diagnosis,
		TreatmentType:    g.pick(treatmentTypes),
		TreatmentHistory: g.sample(priorTreatments, 3),
		AdverseEvents:    g.sample(adverseEventPool, 4),
		Comorbidities:    g.sample(comorbidityPool, 3),
		Hospitalizations: g.intBetween(0, 3),
		OSMonths:         osMonths,
		PFSMonths:        pfsMonths,
		DateOfDeath:      deathDate,
		NumberOfCycles:   len(cycles),
		Cycles:           cycles,
	}
}

// GenerateCohort produces n independent patients under one run ID. Patients
// share the generator's random stream, so a fixed seed reproduces the whole
// cohort byte for byte.
func (g *Generator) GenerateCohort(n int) domain.Cohort {
	patients := make([]domain.Patient, 0, n)
	for i := 1; i <= n; i++ {
		patients = append(patients, g.GeneratePatient(i))
	}

	cohort := domain.Cohort{
		RunID:       uuid.New().String(),
		Seed:        g.seed,
		GeneratedAt: time.Now().UTC(),
		Patients:    patients,
	}

	g.log.WithFields(logrus.Fields{
		"run_id":   cohort.RunID,
		"patients": len(patients),
		"seed":     g.seed,
	}).Info("Cohort generated")

	return cohort
}
