package scoring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/orgpulse/maturity-meter/internal/errors"
)

// Category weights are integers summing to exactly 100 after normalization.
// The DORA category is always present even when an override omits it.
const doraCategory = "DORA"

// DefaultWeights returns the built-in category weight table.
func DefaultWeights() map[string]int {
	return map[string]int{
		"SPEED":      25,
		"QUALITY":    25,
		"VALUE":      25,
		doraCategory: 25,
	}
}

// ParseWeights parses an override string of the form "CAT=N,CAT=N,...".
// Keys are case-insensitive and stored uppercased. An empty string is not
// an error and yields an empty table.
func ParseWeights(override string) (map[string]int, error) {
	weights := make(map[string]int)
	if strings.TrimSpace(override) == "" {
		return weights, nil
	}

	for _, pair := range strings.Split(override, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, errors.NewWeightRangeError(fmt.Sprintf("malformed weight pair %q", pair))
		}

		name := strings.ToUpper(strings.TrimSpace(parts[0]))
		if name == "" {
			return nil, errors.NewWeightRangeError(fmt.Sprintf("empty category name in pair %q", pair))
		}

		value, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || value < 0 {
			return nil, errors.NewWeightRangeError(fmt.Sprintf("invalid weight %q for category %s", parts[1], name))
		}

		weights[name] = value
	}

	return weights, nil
}

// ResolveWeights builds the effective weight table for one evaluation from
// an override string and the externally configured category names. A blank
// or unparseable override falls back to the default table (logged by the
// caller, not an error here). Every known category ends up with an entry,
// using its default weight or zero, and the result is normalized to sum to
// exactly 100.
func ResolveWeights(override string, categories []string) map[string]int {
	defaults := DefaultWeights()

	parsed, err := ParseWeights(override)
	if err != nil || len(parsed) == 0 {
		parsed = defaults
	}

	known := make(map[string]struct{}, len(defaults)+len(categories))
	for name := range defaults {
		known[name] = struct{}{}
	}
	for _, name := range categories {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name != "" {
			known[name] = struct{}{}
		}
	}

	effective := make(map[string]int, len(known))
	for name := range known {
		if w, ok := parsed[name]; ok {
			effective[name] = w
		} else if w, ok := defaults[name]; ok {
			effective[name] = w
		} else {
			effective[name] = 0
		}
	}

	// Overrides may name categories outside the reference store; keep them.
	for name, w := range parsed {
		if _, ok := effective[name]; !ok {
			effective[name] = w
		}
	}

	if _, ok := effective[doraCategory]; !ok {
		effective[doraCategory] = defaults[doraCategory]
	}

	return Normalize(effective)
}

// Normalize scales the table so weights sum to exactly 100. Rounding
// residue lands on the first key in ascending order, keeping the result
// deterministic. A table summing to zero falls back to the defaults.
func Normalize(weights map[string]int) map[string]int {
	sum := 0
	for _, w := range weights {
		sum += w
	}

	if sum == 100 {
		return weights
	}
	if sum <= 0 {
		return DefaultWeights()
	}

	keys := make([]string, 0, len(weights))
	for name := range weights {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	normalized := make(map[string]int, len(weights))
	roundedSum := 0
	for _, name := range keys {
		scaled := int(float64(weights[name])*100/float64(sum) + 0.5)
		normalized[name] = scaled
		roundedSum += scaled
	}

	if residual := 100 - roundedSum; residual != 0 {
		normalized[keys[0]] += residual
	}

	return normalized
}
