package catalog

import "strings"

// Search returns the records whose name or origin contains term
// (case-insensitive) and, when use is non-empty, whose primary use equals
// use exactly. Catalog order is preserved. No match yields an empty slice.
func (c *Catalog) Search(term, use string) []BreedRecord {
	needle := strings.ToLower(term)
	out := make([]BreedRecord, 0, len(c.records))
	for _, r := range c.records {
		if !matchesText(r, needle) {
			continue
		}
		if use != "" && r.Characteristics.PrimaryUse != use {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesText(r BreedRecord, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Name), needle) ||
		strings.Contains(strings.ToLower(r.Characteristics.Origin), needle)
}

// PrimaryUses returns the distinct primary uses in first-seen order.
func (c *Catalog) PrimaryUses() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range c.records {
		use := r.Characteristics.PrimaryUse
		if _, ok := seen[use]; ok {
			continue
		}
		seen[use] = struct{}{}
		out = append(out, use)
	}
	return out
}
