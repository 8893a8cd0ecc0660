// Package reconcile repairs unread counters that drifted from the ledger.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chatdesk/internal/accountcontext"
	"github.com/smallbiznis/chatdesk/internal/clock"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	obslogger "github.com/smallbiznis/chatdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/chatdesk/internal/observability/metrics"
	"github.com/smallbiznis/chatdesk/internal/ratelimit"
	unreaddomain "github.com/smallbiznis/chatdesk/internal/unread/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jobUnread     = "unread_reconcile"
	lockKeyUnread = "chatdesk:job:unread_reconcile"
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Config           Config
	ConversationRepo conversationdomain.Repository
	Unread           unreaddomain.Service
	Locker           *ratelimit.Locker `optional:"true"`
}

type Worker struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	cfg              Config
	conversationRepo conversationdomain.Repository
	unread           unreaddomain.Service
	locker           *ratelimit.Locker
}

// RunStats summarizes one pass over every conversation.
type RunStats struct {
	RunID    string
	Scanned  int
	Repaired int
	Errors   int
	Skipped  bool
}

func New(p Params) *Worker {
	return &Worker{
		db:               p.DB,
		log:              p.Log.Named("reconcile.worker"),
		genID:            p.GenID,
		clock:            p.Clock,
		cfg:              p.Config.withDefaults(),
		conversationRepo: p.ConversationRepo,
		unread:           p.Unread,
		locker:           p.Locker,
	}
}

// RunOnce scans every conversation once. When another replica holds the job
// lock the pass is skipped.
func (w *Worker) RunOnce(parent context.Context) (*RunStats, error) {
	jobs := obsmetrics.Jobs()
	stats := &RunStats{RunID: w.genID.Generate().String()}
	start := w.clock.Now()

	ctx, cancel := context.WithTimeout(parent, w.cfg.JobTimeout)
	defer cancel()
	ctx = accountcontext.WithActor(ctx, accountcontext.Actor{Role: "system"})

	log := obslogger.WithContext(ctx, w.log).With(
		zap.String("job", jobUnread),
		zap.String("run_id", stats.RunID),
	)
	jobs.IncJobRun(jobUnread)

	err := w.locker.WithLock(ctx, lockKeyUnread, w.cfg.LockTTL, func(ctx context.Context) error {
		log.Info("reconcile.job.start", zap.Int("batch_size", w.cfg.BatchSize))
		return w.scan(ctx, log, stats)
	})
	jobs.ObserveJobDuration(jobUnread, w.clock.Now().Sub(start))

	if errors.Is(err, ratelimit.ErrLockHeld) {
		jobs.IncLockSkipped(jobUnread)
		stats.Skipped = true
		log.Debug("reconcile skipped; lock held elsewhere")
		return stats, nil
	}

	fields := []zap.Field{
		zap.Int("scanned", stats.Scanned),
		zap.Int("repaired", stats.Repaired),
		zap.Int("error_count", stats.Errors),
		zap.Int64("duration_ms", w.clock.Now().Sub(start).Milliseconds()),
	}
	if err != nil {
		jobs.IncJobError(jobUnread, err)
		log.Warn("reconcile.job.finish", append(fields, zap.Error(err))...)
		return stats, err
	}
	if stats.Errors > 0 {
		log.Warn("reconcile.job.finish", fields...)
		return stats, nil
	}
	log.Info("reconcile.job.finish", fields...)
	return stats, nil
}

func (w *Worker) scan(ctx context.Context, log *zap.Logger, stats *RunStats) error {
	jobs := obsmetrics.Jobs()
	var after snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := w.conversationRepo.ListIDsAfter(ctx, w.db, after, w.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		drifted := 0
		for _, id := range ids {
			result, err := w.unread.Repair(ctx, id)
			if err != nil {
				if errors.Is(err, unreaddomain.ErrConversationNotFound) {
					// deleted since the batch was listed
					continue
				}
				stats.Errors++
				jobs.IncJobError(jobUnread, err)
				log.Warn("unread repair failed", zap.String("conversation_id", id.String()), zap.Error(err))
				continue
			}
			if result.Drifted() {
				drifted++
			}
		}
		stats.Scanned += len(ids)
		stats.Repaired += drifted
		jobs.AddBatchProcessed(jobUnread, "conversations", len(ids))
		jobs.AddDriftDetected(jobUnread, drifted)

		after = ids[len(ids)-1]
		if len(ids) < w.cfg.BatchSize {
			return nil
		}
	}
}

// RunForever runs a pass every interval until ctx is cancelled.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("reconcile run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
