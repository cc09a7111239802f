package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// Config holds klaxon's application-level configuration, alongside the
// common go-core package configs registered in main.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	DatabaseURL           string
	SlackWebhookURL       string
	EscalationPolicyFile  string
	CalendarEndpoint      string
	CalendarTenantID      string
	SLAInterval           time.Duration
	SLARiskWindow         time.Duration
	SLADebounce           time.Duration
	BulkWorkers           int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests (empty = no auth)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalation/overdue notifications")
	fs.StringVar(&c.EscalationPolicyFile, "escalation-policy-file", "", "YAML file with notification routing rules (empty = default routing)")
	fs.StringVar(&c.CalendarEndpoint, "calendar-endpoint", "", "deadline/calendar service endpoint for SLA tracking (empty = monitor disabled)")
	fs.StringVar(&c.CalendarTenantID, "calendar-tenant-id", "", "calendar tenant ID for multi-tenant setups")
	fs.DurationVar(&c.SLAInterval, "sla-interval", 5*time.Minute, "how often the SLA monitor polls the deadline feed")
	fs.DurationVar(&c.SLARiskWindow, "sla-risk-window", 48*time.Hour, "window ahead of a deadline in which items classify as warning")
	fs.DurationVar(&c.SLADebounce, "sla-debounce", 2*time.Second, "debounce for correlation refresh after SLA cycles")
	fs.IntVar(&c.BulkWorkers, "bulk-workers", 8, "worker pool size for bulk operations (1..64)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must exceed drain time.
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.SLAInterval <= 0 {
		errs = append(errs, errors.New("SLA_INTERVAL must be positive"))
	}
	if c.SLARiskWindow <= 0 {
		errs = append(errs, errors.New("SLA_RISK_WINDOW must be positive"))
	}
	if c.SLADebounce <= 0 {
		errs = append(errs, errors.New("SLA_DEBOUNCE must be positive"))
	}

	if c.BulkWorkers <= 0 || c.BulkWorkers > 64 {
		errs = append(errs, fmt.Errorf("invalid BULK_WORKERS %d (must be 1..64)", c.BulkWorkers))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
