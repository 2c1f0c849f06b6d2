package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/orgpulse/maturity-meter/internal/types"
)

// Scorer folds a per-board maturity map into one weighted efficiency
// result. It holds no state across calls; one instance is safe for
// concurrent use.
type Scorer struct{}

// NewScorer creates a new efficiency scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes the weighted efficiency for one project or level.
// weights must already be normalized (see ResolveWeights); boards that
// match no category contribute nothing, categories that match no board
// score zero and stay out of the weighted sum.
func (s *Scorer) Score(boardMaturities types.BoardMaturityMap, weights map[string]int) types.EfficiencyResult {
	categories := make([]string, 0, len(weights))
	for name := range weights {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	weightedSum := 0.0
	matched := false
	for _, category := range categories {
		weight := weights[category]
		if weight <= 0 {
			continue
		}

		board, ok := matchBoard(category, boardMaturities)
		if !ok {
			continue
		}

		matched = true
		weightedSum += boardMaturities[board] * float64(weight)
	}

	score := 0.0
	if matched {
		score = roundTo(weightedSum/100, 3)
	}
	percentage := roundTo(score/5*100, 1)

	return types.EfficiencyResult{
		Score:      score,
		Percentage: percentage,
		Health:     healthFor(percentage),
		Weights:    weights,
	}
}

// matchBoard finds the board backing a category: exact case-insensitive
// match first, then substring containment in either direction. When more
// than one board could match, the longest board name wins, with the
// lexicographically smallest name breaking remaining ties so results never
// depend on map iteration order.
func matchBoard(category string, boards types.BoardMaturityMap) (string, bool) {
	cat := strings.ToLower(category)

	names := make([]string, 0, len(boards))
	for name := range boards {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		if strings.ToLower(name) == cat {
			return name, true
		}
	}

	for _, name := range names {
		board := strings.ToLower(name)
		if strings.Contains(cat, board) || strings.Contains(board, cat) {
			return name, true
		}
	}

	return "", false
}

// healthFor classifies a rounded percentage into a traffic-light tier.
func healthFor(percentage float64) types.HealthStatus {
	switch {
	case percentage >= 80:
		return types.HealthGreen
	case percentage >= 50:
		return types.HealthAmber
	default:
		return types.HealthRed
	}
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
