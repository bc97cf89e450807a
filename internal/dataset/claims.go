package dataset

import (
	"math"
	"math/rand"
	"strings"

	"github.com/onco-rwe-platform/internal/domain"
)

// procedureCodes is the synthetic CPT code pool for claims rows
var procedureCodes = []string{"CPT-1234", "CPT-5678", "CPT-9012", "CPT-3456"}

// firstClaimID seeds the monotonically increasing claim counter per build
const firstClaimID = 1000

// ClaimRow is one billing event per patient cycle
type ClaimRow struct {
	ClaimID           int     `json:"claim_id"`
	PatientID         string  `json:"patient_id"`
	DateOfService     string  `json:"date_of_service"`
	DrugsAdministered string  `json:"drugs_administered"`
	ProcedureCode     string  `json:"procedure_code"`
	CostOfTreatment   float64 `json:"cost_of_treatment"`
	CostOfDiagnostics float64 `json:"cost_of_diagnostics"`
	TotalBill         float64 `json:"total_bill"`
	PaidByInsurance   float64 `json:"paid_by_insurance"`
	PaidByPatient     float64 `json:"paid_by_patient"`
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// BuildClaims emits one claim per patient cycle with sampled costs: treatment
// 500-5000, diagnostics 200-2000, insurance covering 50-90% of the total.
// The rng makes claim amounts reproducible alongside the cohort seed.
func BuildClaims(rng *rand.Rand, cohort domain.Cohort) []ClaimRow {
	var rows []ClaimRow
	claimID := firstClaimID

	for _, p := range cohort.Patients {
		for _, c := range p.Cycles {
			treatment := roundCents(500 + rng.Float64()*4500)
			diagnostics := roundCents(200 + rng.Float64()*1800)
			total := roundCents(treatment + diagnostics)

			coverage := 0.5 + rng.Float64()*0.4
			insurance := roundCents(total * coverage)
			patient := roundCents(total - insurance)

			rows = append(rows, ClaimRow{
				ClaimID:           claimID,
				PatientID:         p.PatientID,
				DateOfService:     formatDate(c.CycleDate),
				DrugsAdministered: strings.Join(c.DrugsUsed, ", "),
				ProcedureCode:     procedureCodes[rng.Intn(len(procedureCodes))],
				CostOfTreatment:   treatment,
				CostOfDiagnostics: diagnostics,
				TotalBill:         total,
				PaidByInsurance:   insurance,
				PaidByPatient:     patient,
			})
			claimID++
		}
	}
	return rows
}
