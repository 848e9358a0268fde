package scheduler

import (
	"context"

	"vigil/internal/notifications/core"
	"vigil/internal/types"
)

// recoverLedger loads the persisted ledger and, when the backend can enumerate what
// it holds, reconciles the two: records whose handle is gone are dropped and
// live handles the ledger does not know about are cancelled. The latter are
// left behind by a crash between scheduling and committing the ledger.
func (e *Engine) recoverLedger(ctx context.Context) error {
	records, err := e.store.LoadLedger(ctx)
	if err != nil {
		return err
	}

	lister, ok := e.backend.(core.OutstandingLister)
	if !ok {
		e.setLedger(records)
		return nil
	}

	live, err := lister.Outstanding(ctx)
	if err != nil {
		// Without the backend's view the ledger is the best record we have.
		e.logger.WarnContext(ctx, "could not list outstanding notifications, trusting ledger", "error", err)
		e.setLedger(records)
		return nil
	}

	liveSet := make(map[string]struct{}, len(live))
	for _, h := range live {
		liveSet[h] = struct{}{}
	}

	known := make(map[string]struct{}, len(records))
	kept := records[:0:0]
	var stale []string
	for _, r := range records {
		known[r.Handle] = struct{}{}
		if _, ok := liveSet[r.Handle]; ok {
			kept = append(kept, r)
		} else {
			stale = append(stale, r.Handle)
		}
	}

	orphans := 0
	for _, h := range live {
		if _, ok := known[h]; ok {
			continue
		}
		if err := e.backend.Cancel(ctx, h); err != nil {
			e.logger.WarnContext(ctx, "could not cancel orphaned notification", "handle", h, "error", err)
			continue
		}
		orphans++
	}

	if len(stale) > 0 {
		if err := e.store.RemoveLedgerRecords(ctx, stale); err != nil {
			e.logger.ErrorContext(ctx, "failed to drop stale ledger records",
				"error_code", string(types.ErrCodePersistenceFailure),
				"error", err,
			)
		}
	}

	e.logger.InfoContext(ctx, "ledger recovered",
		"records", len(kept),
		"stale_dropped", len(stale),
		"orphans_cancelled", orphans,
	)
	e.setLedger(kept)
	return nil
}
