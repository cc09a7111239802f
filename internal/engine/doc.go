// Package engine provides the business boundary for klaxon's alert
// correlation and lifecycle system. It defines the Service (ingest,
// correlation reads, lifecycle transitions, bulk fan-out), the tagged bulk
// payload union, and the Prometheus metrics for the subsystem.
package engine
