package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sentinels substituted for missing entity fields so that two alerts with the
// same absent fields always produce the same fingerprint.
const (
	sentinelEntity   = "none"
	sentinelProject  = "noproj"
	sentinelSupplier = "nosupplier"
)

// Fingerprint derives the deterministic grouping key for an alert from its
// type and entity identifiers. It is pure: the same inputs always produce
// the same string, and missing fields collapse to fixed sentinels.
func Fingerprint(a *Alert) string {
	kind, id, project, supplier := sentinelEntity, sentinelEntity, sentinelProject, sentinelSupplier
	if a.Entity != nil {
		if a.Entity.Kind != "" {
			kind = a.Entity.Kind
		}
		if a.Entity.ID != "" {
			id = a.Entity.ID
		}
		if a.Entity.ProjectID != "" {
			project = a.Entity.ProjectID
		}
		if a.Entity.SupplierID != "" {
			supplier = a.Entity.SupplierID
		}
	}
	return strings.Join([]string{a.Type, kind, id, project, supplier}, "|")
}

// IncidentID derives a stable incident identity from a fingerprint. The full
// fingerprint is hashed rather than truncated, so distinct fingerprints can
// never collapse into the same incident.
func IncidentID(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])
}
