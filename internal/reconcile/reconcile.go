package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"croptalk/pkg/chat"
	"croptalk/pkg/config"
	"croptalk/pkg/logger"
	"croptalk/pkg/store"
	"croptalk/pkg/telemetry"
)

// The conversation row is a materialized view over the append-only
// message log. The write path keeps the two consistent (single batch),
// but operator edits, partial restores or future bugs can still make
// them diverge. This job rebuilds every row from the log and repairs any
// difference, logging each repair so divergence is never silent. Repairs
// go through chat.Service so they hold the same per-conversation lock as
// sends and read-marking.

// Start launches the cron-scheduled reconciler if enabled. Returns a
// cancel func for shutdown.
func Start(ctx context.Context, cfg config.ReconcileConfig, svc *chat.Service) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("reconcile_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("reconcile_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid reconcile cron expression: %s", cfg.Cron)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, svc, cronExpr)
	logger.Info("reconcile_scheduler_started", "cron", cronExpr)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured
// cron expression and sleeps until that time.
func runScheduler(ctx context.Context, cfg config.ReconcileConfig, svc *chat.Service, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("reconcile_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("reconcile_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if _, err := RunOnce(ctx, svc, cfg.BatchSize); err != nil {
				logger.Error("reconcile_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("reconcile_scheduler_stopping")
			return
		}
	}
}

// RunOnce scans every conversation and repairs divergent rows. Returns
// the number of rows repaired. batchSize bounds how many conversations
// are processed between context checks; 0 means all at once.
func RunOnce(ctx context.Context, svc *chat.Service, batchSize int) (int, error) {
	ids, err := store.ListConversationIDs()
	if err != nil {
		return 0, err
	}
	repaired := 0
	for i, id := range ids {
		if batchSize > 0 && i > 0 && i%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return repaired, err
			}
		}
		changed, err := svc.RebuildConversation(id)
		if err != nil {
			logger.Error("reconcile_conversation_failed", "conversation", id, "error", err)
			continue
		}
		if changed {
			repaired++
		}
	}
	if repaired > 0 {
		telemetry.ReconcileRepairs.Add(float64(repaired))
	}
	logger.Info("reconcile_run_complete", "conversations", len(ids), "repaired", repaired)
	return repaired, nil
}
