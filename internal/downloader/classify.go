package downloader

import (
	"context"
	"errors"

	"fbdownloader/internal/fbads"
	"fbdownloader/internal/scheduler"
)

// classify maps API client failures onto the scheduler's retry taxonomy.
//
//   - error code 17 (throttling) -> rate limited, retried after the worker
//     that saw it sat out the backoff
//   - HTTP 5xx -> transient, retried without a pause
//   - other API errors -> fatal, like the original exporter re-raising them
//   - transport errors (DNS, reset, timeout) -> transient
//   - context cancellation -> fatal; the run is shutting down anyway
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var req *fbads.RequestError
	if errors.As(err, &req) {
		switch {
		case req.IsRateLimit():
			return scheduler.RateLimited(err)
		case req.Temporary():
			return scheduler.Transient(err)
		default:
			return err
		}
	}

	// Anything else from the client is transport-level.
	return scheduler.Transient(err)
}
