// Package interactions implements the drug-interaction pipeline: name
// normalization, identifier resolution, interaction retrieval, severity
// formatting and the single-flight interaction cache.
package interactions

import (
	"fmt"
	"slices"
	"strings"

	"github.com/giygas/interactions-api/interactions/entities"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// CanonicalName returns the canonical form of a single medication name.
// The result is empty when the name holds nothing but whitespace.
func CanonicalName(name string) string {
	name = norm.NFKC.String(name)
	// The key separator never appears inside a canonical name.
	name = strings.ReplaceAll(name, entities.KeySeparator, " ")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	// A Caser is stateful, one per call.
	return cases.Lower(language.Und).String(name)
}

// Normalize canonicalizes a raw list of medication names into a MedicationSet.
// Blank names are dropped; fewer than two distinct names is ErrInvalidInput.
func Normalize(names []string) (entities.MedicationSet, error) {
	canonical := make([]string, 0, len(names))
	for _, name := range names {
		if c := CanonicalName(name); c != "" {
			canonical = append(canonical, c)
		}
	}

	slices.Sort(canonical)
	canonical = slices.Compact(canonical)

	if len(canonical) < 2 {
		return entities.MedicationSet{}, fmt.Errorf("%w: at least two distinct medication names are required, got %d", ErrInvalidInput, len(canonical))
	}

	return entities.NewMedicationSetFromCanonical(canonical), nil
}

// ParseMedicationList splits a comma separated list as sent in query strings
func ParseMedicationList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}
