package incident

import "sort"

// Rank orders incidents for display: severity rank descending, then due date
// ascending with no-deadline incidents last. The sort is stable, so repeated
// calls on unchanged input return an identical order.
func Rank(incidents []*Incident) []*Incident {
	out := make([]*Incident, len(incidents))
	copy(out, incidents)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		switch {
		case a.DueAt == nil && b.DueAt == nil:
			return false
		case a.DueAt == nil:
			return false
		case b.DueAt == nil:
			return true
		default:
			return a.DueAt.Before(*b.DueAt)
		}
	})
	return out
}
