package simulate

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/onco-rwe-platform/internal/domain"
)

// Generator produces synthetic patient timelines and cohorts from a seedable
// random source. It never fails: out-of-domain diseases and stages degrade to
// defaults. A Generator is not safe for concurrent use; create one per
// goroutine when generating cohorts in parallel.
type Generator struct {
	rng  *rand.Rand
	seed int64
	log  *logrus.Logger
	plan Plan

	// sampleOutcome is swappable so tests can force terminal outcomes
	// on a chosen cycle.
	sampleOutcome func(*rand.Rand) domain.Outcome
}

// Plan bounds the per-patient cohort sampling: how many cycles to plan, the
// gap between them, and the window first cycle dates are drawn from.
type Plan struct {
	MinCycles    int
	MaxCycles    int
	CycleGapDays int
	StartYear    int
	EndYear      int
}

// DefaultPlan returns the reference dataset's sampling bounds.
func DefaultPlan() Plan {
	return Plan{
		MinCycles:    3,
		MaxCycles:    6,
		CycleGapDays: 21,
		StartYear:    2021,
		EndYear:      2024,
	}
}

// New creates a Generator seeded for reproducible output
func New(seed int64, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{
		rng:           rand.New(rand.NewSource(seed)),
		seed:          seed,
		log:           logger,
		plan:          DefaultPlan(),
		sampleOutcome: uniformOutcome,
	}
}

// WithPlan overrides the cohort sampling bounds. Zero-valued fields keep
// their defaults.
func (g *Generator) WithPlan(p Plan) *Generator {
	def := DefaultPlan()
	if p.MinCycles > 0 {
		g.plan.MinCycles = p.MinCycles
	} else {
		g.plan.MinCycles = def.MinCycles
	}
	if p.MaxCycles > 0 {
		g.plan.MaxCycles = p.MaxCycles
	} else {
		g.plan.MaxCycles = def.MaxCycles
	}
	if p.CycleGapDays > 0 {
		g.plan.CycleGapDays = p.CycleGapDays
	} else {
		g.plan.CycleGapDays = def.CycleGapDays
	}
	if p.StartYear > 0 {
		g.plan.StartYear = p.StartYear
	} else {
		g.plan.StartYear = def.StartYear
	}
	if p.EndYear >= g.plan.StartYear {
		g.plan.EndYear = p.EndYear
	} else {
		g.plan.EndYear = def.EndYear
	}
	return g
}

// uniformOutcome draws uniformly across the full outcome enumeration.
// Terminal outcomes are as likely as any other on every draw.
func uniformOutcome(rng *rand.Rand) domain.Outcome {
	return domain.Outcomes[rng.Intn(len(domain.Outcomes))]
}

// GenerateTimeline produces a bounded sequence of treatment cycles for one
// patient. The timeline terminates when maxCycles is exhausted, when the
// next cycle date would fall on or after a known death date, or immediately
// after the first cycle with a terminal outcome. A Death outcome sets the
// death date to the advanced cycle date; Discontinued leaves it untouched.
func (g *Generator) GenerateTimeline(disease domain.Disease, start time.Time, maxCycles, cycleGapDays int, deathDate *time.Time) ([]domain.TreatmentCycle, *time.Time) {
	cycles := make([]domain.TreatmentCycle, 0, maxCycles)

	// Disease stage starts at 1 or 2 and only ever progresses.
	stage := 1 + g.rng.Intn(2)
	expr := NewGeneExpression(g.rng, disease, stage)

	for cycleNum := 1; cycleNum <= maxCycles; cycleNum++ {
		if deathDate != nil && !start.Before(*deathDate) {
			break
		}

		outcome := g.sampleOutcome(g.rng)

		cycles = append(cycles, domain.TreatmentCycle{
			CycleNumber:    cycleNum,
			CycleDate:      start,
			DiseaseStage:   stage,
			TherapySegment: TherapySegment(stage),
			DrugsUsed:      g.cycleDrugs(stage),
			GeneExpression: expr.Clone(),
			Outcome:        outcome,
		})

		start = start.AddDate(0, 0, cycleGapDays)

		// The next snapshot is scaled by the next stage's multiplier
		// before the stage itself is bumped.
		nextStage := stage + 1
		if nextStage > domain.MaxStage {
			nextStage = domain.MaxStage
		}
		expr = advanceExpression(g.rng, expr, nextStage)

		if stage < domain.MaxStage {
			stage++
		}

		if outcome == domain.Death {
			d := start
			deathDate = &d
			break
		}
		if outcome == domain.Discontinued {
			break
		}
	}

	return cycles, deathDate
}

// cycleDrugs samples 1..min(3, catalog) distinct drugs from the stage catalog
func (g *Generator) cycleDrugs(stage int) []string {
	catalog := DrugsByStage[stage]
	if len(catalog) == 0 {
		return []string{}
	}

	max := len(catalog)
	if max > 3 {
		max = 3
	}
	n := 1 + g.rng.Intn(max)

	drugs := make([]string, 0, n)
	for _, idx := range g.rng.Perm(len(catalog))[:n] {
		drugs = append(drugs, catalog[idx])
	}
	return drugs
}
