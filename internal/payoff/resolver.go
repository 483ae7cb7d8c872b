package payoff

import (
	"strconv"
	"strings"
)

// FixingResolver substitutes underlying variable names in a formula
// text with numeric values from page/source configuration. The formula
// language itself is evaluated elsewhere; the engine only consumes the
// substitution service.
type FixingResolver interface {
	// Update returns the formula text with known variables replaced by
	// their numeric values.
	Update(formula string) string
	// UpdateCompute substitutes and, when the result reduces to a
	// plain number, computes it. ok is false when the text does not
	// reduce.
	UpdateCompute(formula string) (float64, bool)
}

// MapResolver is a FixingResolver backed by an in-memory snapshot.
// Used in tests and as the adapter over the fixing store.
type MapResolver map[string]float64

// Update replaces each known variable name with its value.
func (m MapResolver) Update(formula string) string {
	out := formula
	for name, v := range m {
		out = strings.ReplaceAll(out, name, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return out
}

// UpdateCompute substitutes and parses the result as a number.
func (m MapResolver) UpdateCompute(formula string) (float64, bool) {
	s := strings.TrimSpace(m.Update(formula))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Snapshot returns the resolver contents as a fixing snapshot for the
// given variables; missing names are simply absent (undetermined).
func (m MapResolver) Snapshot(variables []string) map[string]float64 {
	out := make(map[string]float64, len(variables))
	for _, v := range variables {
		if x, ok := m[v]; ok {
			out[v] = x
		}
	}
	return out
}
