package engine

import (
	"context"
	"sync"

	"github.com/linnemanlabs/klaxon/internal/alert"
)

const defaultBulkWorkers = 8

// ItemError records why one alert in a bulk operation failed.
type ItemError struct {
	AlertID string     `json:"alert_id"`
	Kind    alert.Kind `json:"kind"`
	Message string     `json:"message"`
}

// BulkResult aggregates the per-item outcomes of a bulk operation.
type BulkResult struct {
	Processed  int         `json:"processed"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Errors     []ItemError `json:"errors,omitempty"`
}

// PartialFailure reports whether some, but not all, items failed.
func (r *BulkResult) PartialFailure() bool {
	return r.Failed > 0 && r.Successful > 0
}

// BulkApply fans the action out over the given alert ids, each processed
// independently through the lifecycle state machine on a bounded worker
// pool. One item's failure never aborts the rest; the call returns only
// after every item has finished, with a per-item error breakdown so callers
// can retry just the failed subset.
//
// If ctx is canceled mid-flight, no new items are started (they are reported
// as canceled), but items already in progress run to completion so no alert
// is left mid-write.
func (s *Service) BulkApply(ctx context.Context, ids []string, actor string, payload BulkPayload) *BulkResult {
	result := &BulkResult{Processed: len(ids)}
	if len(ids) == 0 {
		return result
	}

	timer := s.metrics.bulkTimer()
	defer timer.ObserveDuration()

	workers := s.bulkWorkers
	if workers > len(ids) {
		workers = len(ids)
	}

	type outcome struct {
		idx int
		err error
	}

	work := make(chan int)
	outcomes := make([]outcome, len(ids))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				id := ids[idx]
				select {
				case <-ctx.Done():
					outcomes[idx] = outcome{idx, alert.NewCanceled(id)}
					continue
				default:
				}
				// Detached from ctx so an in-flight transition is never
				// interrupted between its read and its write.
				_, err := s.transition(context.WithoutCancel(ctx), params(id, actor, payload))
				outcomes[idx] = outcome{idx, err}
			}
		}()
	}

	for idx := range ids {
		work <- idx
	}
	close(work)
	wg.Wait()

	for idx, oc := range outcomes {
		if oc.err == nil {
			result.Successful++
			s.metrics.BulkItemsTotal.WithLabelValues("ok").Inc()
			continue
		}
		result.Failed++
		kind := alert.KindOf(oc.err)
		if kind == "" {
			kind = "error"
		}
		s.metrics.BulkItemsTotal.WithLabelValues(string(kind)).Inc()
		result.Errors = append(result.Errors, ItemError{
			AlertID: ids[idx],
			Kind:    kind,
			Message: oc.err.Error(),
		})
	}

	s.logger.Info(ctx, "bulk operation complete",
		"action", payload.Action(),
		"processed", result.Processed,
		"successful", result.Successful,
		"failed", result.Failed,
	)
	return result
}
