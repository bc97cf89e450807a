package simulate

import (
	"math"
	"math/rand"
	"sort"

	"github.com/onco-rwe-platform/internal/domain"
)

// driftVariation bounds the per-cycle random drift added to each gene level
const driftVariation = 2.0

// round2 rounds to 2 decimal places, matching the stored precision of
// expression levels everywhere in the platform.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NewGeneExpression samples an initial expression snapshot for a disease and
// stage: a uniform draw inside each gene's baseline range, scaled by the
// stage multiplier.
func NewGeneExpression(rng *rand.Rand, disease domain.Disease, stage int) domain.GeneExpression {
	base := baselineFor(disease)
	mult := StageMultiplier(stage)

	expr := make(domain.GeneExpression, len(GeneList))
	for _, gene := range GeneList {
		r, ok := base[gene]
		if !ok {
			r = defaultBaseline
		}
		val := r.Min + rng.Float64()*(r.Max-r.Min)
		expr[gene] = round2(val * mult)
	}
	return expr
}

// advanceExpression produces the snapshot for the next cycle: bounded drift
// added to the current absolute level, then the next stage's multiplier.
// The multiplier compounds on the drift-adjusted value rather than a fresh
// baseline draw; levels can therefore grow without bound over long timelines.
// That matches the reference data generator and must not be "fixed" here.
func advanceExpression(rng *rand.Rand, expr domain.GeneExpression, nextStage int) domain.GeneExpression {
	mult := StageMultiplier(nextStage)

	// Iterate genes in a fixed order so the rng draws map to the same
	// genes on every run with a given seed.
	genes := make([]string, 0, len(expr))
	for gene := range expr {
		genes = append(genes, gene)
	}
	sort.Strings(genes)

	next := make(domain.GeneExpression, len(expr))
	for _, gene := range genes {
		drift := -driftVariation + rng.Float64()*(2*driftVariation)
		next[gene] = round2((expr[gene] + drift) * mult)
	}
	return next
}
