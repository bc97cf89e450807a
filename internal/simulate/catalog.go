package simulate

import (
	"github.com/onco-rwe-platform/internal/domain"
)

// GeneList is the fixed panel of tracked genes
var GeneList = []string{"EGFR", "KRAS", "BRAF", "PIK3CA"}

// baselineRange is an inclusive (min, max) expression range
type baselineRange struct {
	Min float64
	Max float64
}

// defaultBaseline is used when a disease has no range for a tracked gene
var defaultBaseline = baselineRange{5, 10}

// diseaseGeneBase holds baseline expression ranges per disease and gene.
// Unknown diseases fall back to the Breast Cancer baseline.
var diseaseGeneBase = map[domain.Disease]map[string]baselineRange{
	domain.BreastCancer: {
		"EGFR":   {5, 8},
		"KRAS":   {4, 7},
		"BRAF":   {5, 10},
		"PIK3CA": {6, 11},
	},
	domain.LungCancer: {
		"EGFR":   {10, 15},
		"KRAS":   {8, 14},
		"BRAF":   {5, 9},
		"PIK3CA": {7, 10},
	},
	domain.ColorectalCancer: {
		"EGFR":   {4, 7},
		"KRAS":   {9, 14},
		"BRAF":   {7, 12},
		"PIK3CA": {6, 9},
	},
	domain.ProstateCancer: {
		"EGFR":   {4, 6},
		"KRAS":   {5, 8},
		"BRAF":   {3, 6},
		"PIK3CA": {5, 8},
	},
	domain.Leukemia: {
		"EGFR":   {5, 8},
		"KRAS":   {5, 9},
		"BRAF":   {5, 9},
		"PIK3CA": {4, 7},
	},
	domain.Lymphoma: {
		"EGFR":   {6, 9},
		"KRAS":   {5, 8},
		"BRAF":   {6, 10},
		"PIK3CA": {5, 9},
	},
}

// stageMultipliers scales expression by disease stage. Unknown stages use 1.0.
var stageMultipliers = map[int]float64{
	1: 1.0,
	2: 1.1,
	3: 1.2,
	4: 1.3,
}

// DrugsByStage is the per-stage drug catalog
var DrugsByStage = map[int][]string{
	1: {"Doxorubicin", "Cyclophosphamide", "Paclitaxel"},
	2: {"Carboplatin", "Cisplatin", "Pembrolizumab"},
	3: {"Trastuzumab", "Erlotinib", "Bevacizumab"},
	4: {"Gemcitabine", "Vincristine", "Irinotecan"},
}

// therapySegmentByStage maps stage to its therapy-line label
var therapySegmentByStage = map[int]string{
	1: "First-line Therapy",
	2: "Second-line Therapy",
	3: "Third-line Therapy",
	4: "Fourth-line Therapy",
}

// StageMultiplier returns the expression multiplier for a stage,
// falling back to 1.0 for out-of-domain stages.
func StageMultiplier(stage int) float64 {
	if m, ok := stageMultipliers[stage]; ok {
		return m
	}
	return 1.0
}

// TherapySegment returns the therapy-line label for a stage
func TherapySegment(stage int) string {
	return therapySegmentByStage[stage]
}

// baselineFor returns the gene baseline table for a disease,
// falling back to the Breast Cancer table for unknown diseases.
func baselineFor(disease domain.Disease) map[string]baselineRange {
	if base, ok := diseaseGeneBase[disease]; ok {
		return base
	}
	return diseaseGeneBase[domain.BreastCancer]
}
