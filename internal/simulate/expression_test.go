package simulate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onco-rwe-platform/internal/domain"
)

func TestNewGeneExpression_WithinScaledRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for disease, base := range diseaseGeneBase {
		for stage := domain.MinStage; stage <= domain.MaxStage; stage++ {
			mult := StageMultiplier(stage)
			for trial := 0; trial < 20; trial++ {
				expr := NewGeneExpression(rng, disease, stage)
				require.Len(t, expr, len(GeneList))

				for _, gene := range GeneList {
					r := base[gene]
					val := expr[gene]
					assert.GreaterOrEqual(t, val, round2(r.Min*mult)-0.01,
						"%s/%s stage %d below range", disease, gene, stage)
					assert.LessOrEqual(t, val, round2(r.Max*mult)+0.01,
						"%s/%s stage %d above range", disease, gene, stage)
				}
			}
		}
	}
}

func TestNewGeneExpression_RoundedToTwoDecimals(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	expr := NewGeneExpression(rng, domain.LungCancer, 3)

	for gene, val := range expr {
		assert.Equal(t, round2(val), val, "gene %s not stored at 2-decimal precision", gene)
	}
}

func TestNewGeneExpression_UnknownStageUsesUnitMultiplier(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	base := diseaseGeneBase[domain.Leukemia]

	expr := NewGeneExpression(rng, domain.Leukemia, 9)

	for _, gene := range GeneList {
		r := base[gene]
		assert.GreaterOrEqual(t, expr[gene], r.Min-0.01)
		assert.LessOrEqual(t, expr[gene], r.Max+0.01)
	}
}

func TestAdvanceExpression_DriftAndMultiplierBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	expr := domain.GeneExpression{"EGFR": 10, "KRAS": 6, "BRAF": 8, "PIK3CA": 7}

	for trial := 0; trial < 50; trial++ {
		next := advanceExpression(rng, expr, 3)
		mult := StageMultiplier(3)
		for gene, old := range expr {
			val := next[gene]
			assert.GreaterOrEqual(t, val, round2((old-driftVariation)*mult)-0.01, "gene %s", gene)
			assert.LessOrEqual(t, val, round2((old+driftVariation)*mult)+0.01, "gene %s", gene)
		}
	}
}

// The update rule multiplies the drift-adjusted absolute level rather than
// re-sampling from baseline, so levels compound across cycles. The platform
// reproduces that reference behavior on purpose; this test pins it down.
func TestAdvanceExpression_CompoundsAcrossCycles(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	expr := domain.GeneExpression{"EGFR": 10}

	grew := false
	for i := 0; i < 40; i++ {
		expr = advanceExpression(rng, expr, 4)
		if expr["EGFR"] > 15 { // above any stage-4 scaling of the initial level alone
			grew = true
		}
		assert.Equal(t, round2(expr["EGFR"]), expr["EGFR"])
	}
	assert.True(t, grew, "repeated drift-then-multiply should push levels past the single-step bound")
}

func TestStageMultiplier_Fallback(t *testing.T) {
	assert.Equal(t, 1.0, StageMultiplier(0))
	assert.Equal(t, 1.0, StageMultiplier(5))
	assert.Equal(t, 1.3, StageMultiplier(4))
}

func TestGeneExpression_Clone(t *testing.T) {
	expr := domain.GeneExpression{"EGFR": 1.5, "KRAS": 2.5}
	clone := expr.Clone()

	clone["EGFR"] = 9.9
	assert.Equal(t, 1.5, expr["EGFR"])
	assert.Equal(t, 2.5, clone["KRAS"])
}
