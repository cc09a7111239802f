// Package alert defines the canonical alert domain for klaxon: the Alert
// record and its severity/status/action enums, the deterministic fingerprint
// used for incident grouping, the Normalizer that converts source-specific
// raw events into Alerts, the Store interface (persistence), and the error
// taxonomy shared by the lifecycle and bulk operations.
package alert
