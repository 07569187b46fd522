package engine

import (
	"context"
	"errors"
)

// Sweep arms pending jobs that have neither a timer nor a delivery in flight.
// It returns the number of jobs armed.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	sctx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	jobList, err := e.store.ListRecoverable(sctx)
	cancel()
	if err != nil {
		return 0, err
	}

	armed := 0
	for _, job := range jobList {
		if e.registry.Has(job.ID) || e.InFlight(job.ID) {
			continue
		}
		if err := e.Arm(job); err != nil {
			if errors.Is(err, ErrShutdown) {
				return armed, nil
			}
			return armed, err
		}
		armed++
	}

	if armed > 0 {
		e.logger.Warn("sweep armed orphaned jobs", "count", armed)
	}
	return armed, nil
}
