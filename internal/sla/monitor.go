package sla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/klaxon/internal/alert"
)

// TrackedItem is one externally tracked deadline.
type TrackedItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	DueAt     time.Time `json:"due_at"`
	EventType string    `json:"event_type"`
	Priority  string    `json:"priority,omitempty"`
	Bureau    string    `json:"bureau,omitempty"`
}

// Feed supplies the tracked deadline items, typically from a calendar service.
type Feed interface {
	TrackedItems(ctx context.Context) ([]TrackedItem, error)
}

// Ingester accepts the synthetic calendar alerts the monitor emits. Satisfied
// by engine.Service.
type Ingester interface {
	Ingest(ctx context.Context, raw *alert.RawEvent, source string) (*alert.Alert, error)
}

// Notifier is called when an item transitions into overdue.
type Notifier interface {
	Overdue(ctx context.Context, item TrackedItem) error
}

// Counts tallies one cycle's classifications.
type Counts struct {
	OK      int
	Warning int
	Overdue int
}

// Hooks let the caller observe monitor cycles (wired to Prometheus by main).
type Hooks struct {
	OnCycle func(counts Counts, err error)
}

// Options configures the monitor's schedule.
type Options struct {
	// Interval between feed polls. Zero means DefaultInterval.
	Interval time.Duration
	// RiskWindow ahead of a deadline in which items turn warning.
	// Zero means DefaultRiskWindow.
	RiskWindow time.Duration
	// Debounce coalesces refresh triggers after bursts of reclassified
	// items. Zero means DefaultDebounce.
	Debounce time.Duration
}

const (
	DefaultInterval = 5 * time.Minute
	DefaultDebounce = 2 * time.Second
)

// Monitor polls the deadline feed on its own schedule, classifies each item,
// and emits synthetic calendar alerts through the normalizer path. A feed
// outage degrades to an empty cycle rather than failing ingestion.
type Monitor struct {
	feed     Feed
	ingester Ingester
	notifier Notifier
	logger   log.Logger
	hooks    Hooks
	opts     Options
	now      func() time.Time

	// onRefresh fires, debounced, after a cycle that emitted alerts.
	onRefresh func()

	mu       sync.Mutex
	debounce *time.Timer
	lastRisk map[string]Risk
}

// NewMonitor creates an SLA monitor. notifier and hooks may be zero.
func NewMonitor(feed Feed, ingester Ingester, logger log.Logger, opts Options, hooks Hooks) *Monitor {
	if logger == nil {
		logger = log.Nop()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RiskWindow <= 0 {
		opts.RiskWindow = DefaultRiskWindow
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Monitor{
		feed:     feed,
		ingester: ingester,
		logger:   logger,
		hooks:    hooks,
		opts:     opts,
		now:      time.Now,
		lastRisk: make(map[string]Risk),
	}
}

// SetNotifier wires the overdue-transition notifier.
func (m *Monitor) SetNotifier(n Notifier) { m.notifier = n }

// SetRefreshFunc wires the debounced refresh trigger.
func (m *Monitor) SetRefreshFunc(fn func()) { m.onRefresh = fn }

// Run polls the feed until ctx is canceled. The first cycle runs
// immediately; later ones on the configured interval. Cancellation here is
// independent of any lifecycle operation.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	defer m.stopDebounce()

	m.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info(context.WithoutCancel(ctx), "sla monitor stopped")
			return
		case <-ticker.C:
			m.cycle(ctx)
		}
	}
}

func (m *Monitor) cycle(ctx context.Context) {
	items, err := m.feed.TrackedItems(ctx)
	if err != nil {
		// Degraded mode: emit nothing this cycle instead of failing
		// the ingestion path.
		m.logger.Warn(ctx, "deadline feed unavailable, skipping cycle", "error", err)
		if m.hooks.OnCycle != nil {
			m.hooks.OnCycle(Counts{}, err)
		}
		return
	}

	now := m.now().UTC()
	var counts Counts
	emitted := 0

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		seen[item.ID] = struct{}{}
		risk := Classify(item.DueAt, now, m.opts.RiskWindow)
		switch risk {
		case RiskOverdue:
			counts.Overdue++
		case RiskWarning:
			counts.Warning++
		default:
			counts.OK++
		}

		if _, err := m.ingester.Ingest(ctx, syntheticEvent(item, risk, now), alert.SourceCalendar); err != nil {
			m.logger.Error(ctx, err, "synthetic sla alert rejected", "item_id", item.ID)
			continue
		}
		emitted++

		if risk == RiskOverdue && m.previousRisk(item.ID) != RiskOverdue && m.notifier != nil {
			if err := m.notifier.Overdue(ctx, item); err != nil {
				m.logger.Error(ctx, err, "overdue notification failed", "item_id", item.ID)
			}
		}
		m.setRisk(item.ID, risk)
	}
	m.pruneRisk(seen)

	m.logger.Info(ctx, "sla cycle complete",
		"items", len(items),
		"emitted", emitted,
		"ok", counts.OK,
		"warning", counts.Warning,
		"overdue", counts.Overdue,
	)
	if m.hooks.OnCycle != nil {
		m.hooks.OnCycle(counts, nil)
	}
	if emitted > 0 {
		m.scheduleRefresh()
	}
}

// syntheticEvent shapes a tracked item as a calendar raw event. The id is
// deterministic so repeated cycles upsert the same alert instead of piling
// up duplicates.
func syntheticEvent(item TrackedItem, risk Risk, now time.Time) *alert.RawEvent {
	severity := alert.SeverityInfo
	switch risk {
	case RiskOverdue:
		severity = alert.SeverityCritical
	case RiskWarning:
		severity = alert.SeverityWarning
	}

	until := item.DueAt.Sub(now)
	due := item.DueAt

	return &alert.RawEvent{
		ID:       "sla-" + item.ID,
		Severity: string(severity),
		Type:     "sla",
		Bureau:   item.Bureau,
		Title:    fmt.Sprintf("Deadline %s: %s", risk, item.Title),
		Entity: &alert.Entity{
			Kind: item.EventType,
			ID:   item.ID,
		},
		SLADueAt: &due,
		Metadata: map[string]string{
			"tracked_item_id": item.ID,
			"risk":            string(risk),
			"days_until":      fmt.Sprintf("%d", int(until.Hours()/24)),
			"hours_until":     fmt.Sprintf("%d", int(until.Hours())),
		},
	}
}

func (m *Monitor) previousRisk(id string) Risk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRisk[id]
}

func (m *Monitor) setRisk(id string, r Risk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRisk[id] = r
}

// pruneRisk drops risk state for items no longer reported by the feed, so
// the map does not grow without bound as tracked items come and go.
func (m *Monitor) pruneRisk(seen map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.lastRisk {
		if _, ok := seen[id]; !ok {
			delete(m.lastRisk, id)
		}
	}
}

// scheduleRefresh arms the debounced refresh callback, resetting any pending
// one so bursts of reclassified items collapse into a single trigger.
func (m *Monitor) scheduleRefresh() {
	if m.onRefresh == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(m.opts.Debounce, m.onRefresh)
}

func (m *Monitor) stopDebounce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
}
