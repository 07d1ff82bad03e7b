package lifecycle

import (
	"context"
	"errors"
	"log"
	"time"

	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
)

const defaultSweepPageSize = 100

// SweepOptions controls one run. AsOf is the instant deadlines are compared against;
// After resumes a previous run from its cursor.
type SweepOptions struct {
	AsOf     time.Time
	After    string
	PageSize int
}

type SweepResult struct {
	Scanned int    `json:"scanned"`
	Settled int    `json:"settled"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Cursor  string `json:"cursor"`
}

// Sweeper settles tasks whose citizen never answered before the deadline.
type Sweeper struct {
	svc *Service
}

func NewSweeper(svc *Service) *Sweeper {
	return &Sweeper{svc: svc}
}

var errNotDue = errors.New("task no longer due")

// Run settles every due task in id order, one transaction per task. A task that was
// settled concurrently is skipped, and a failure on one task does not stop the run.
// Re-running with the same AsOf is harmless.
func (sw *Sweeper) Run(ctx context.Context, opts SweepOptions) (SweepResult, error) {
	if opts.AsOf.IsZero() {
		opts.AsOf = sw.svc.now()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultSweepPageSize
	}
	asOf := opts.AsOf.Unix()
	result := SweepResult{Cursor: opts.After}

	for {
		page, err := sw.svc.store.ListDueTasks(ctx, asOf, result.Cursor, opts.PageSize)
		if err != nil {
			return result, err
		}

		for _, due := range page {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Scanned++

			err := sw.svc.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				task, err := tx.GetTask(ctx, due.ID)
				if err != nil {
					return err
				}
				if !task.DueForAutoConfirm(asOf) {
					return errNotDue
				}
				return sw.svc.settle(ctx, tx, task, models.SettledByAutoConfirm)
			})
			switch {
			case err == nil:
				result.Settled++
			case errors.Is(err, errNotDue):
				result.Skipped++
			default:
				result.Failed++
				log.Printf("❌ Auto-confirm failed for task %s: %v", due.ID, err)
			}
			result.Cursor = due.ID
		}

		if len(page) < opts.PageSize {
			return result, nil
		}
	}
}
