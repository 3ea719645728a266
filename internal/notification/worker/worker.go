package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/config"
	"github.com/smallbiznis/carebridge/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/carebridge/internal/observability/metrics"
	"github.com/smallbiznis/carebridge/internal/providers/email"
	"github.com/smallbiznis/carebridge/pkg/log/ctxlogger"
	"github.com/smallbiznis/carebridge/pkg/telemetry"
	"github.com/smallbiznis/carebridge/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 20
	defaultMaxAttempts  = 5
	defaultClaimLease   = 5 * time.Minute
	maxBackoff          = 10 * time.Minute
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config `optional:"true"`
	Repo       domain.Repository
	Email      email.Provider
	Clock      clock.Clock
	Telemetry  *telemetry.Metrics  `optional:"true"`
	OTelMetric *obsmetrics.Metrics `optional:"true"`
}

// Worker delivers outbox jobs. It is the only background goroutine of the
// service.
type Worker struct {
	log         *zap.Logger
	repo        domain.Repository
	email       email.Provider
	clock       clock.Clock
	telemetry   *telemetry.Metrics
	otelMetric  *obsmetrics.Metrics
	interval    time.Duration
	batchSize   int
	maxAttempts int
	claimLease  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(p Params) *Worker {
	w := &Worker{
		log:         p.Log.Named("notification.worker"),
		repo:        p.Repo,
		email:       p.Email,
		clock:       p.Clock,
		telemetry:   p.Telemetry,
		otelMetric:  p.OTelMetric,
		interval:    p.Config.Notification.PollInterval,
		batchSize:   p.Config.Notification.BatchSize,
		maxAttempts: p.Config.Notification.MaxAttempts,
		claimLease:  p.Config.Notification.ClaimLease,
	}
	if w.interval <= 0 {
		w.interval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.claimLease <= 0 {
		w.claimLease = defaultClaimLease
	}
	return w
}

// Register hooks the poll loop into the fx lifecycle.
func Register(lc fx.Lifecycle, w *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return w.Stop(ctx)
		},
	})
}

func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
					w.log.Error("notification batch failed", zap.Error(err))
				}
			}
		}
	}()
	w.log.Info("notification worker started", zap.Duration("interval", w.interval))
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.log.Info("notification worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce delivers one batch of due jobs and returns how many were sent.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	now := w.clock.Now()
	staleBefore := now.Add(-w.claimLease)
	jobs, err := w.repo.ListDue(ctx, now, staleBefore, w.batchSize)
	if err != nil {
		w.telemetry.RecordOutboxBatch("error", time.Since(start))
		return 0, err
	}

	sent := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		ok, err := w.repo.Claim(ctx, job.ID, w.clock.Now(), staleBefore)
		if err != nil {
			return sent, err
		}
		if !ok {
			continue
		}
		if job.Status == domain.StatusProcessing {
			w.log.Warn("reclaimed stale notification job",
				zap.String("job_id", job.JobID),
				zap.Time("claimed_at", job.UpdatedAt),
			)
		}
		if w.deliver(ctx, job) {
			sent++
		}
	}

	if pending, err := w.repo.CountPending(ctx); err == nil {
		w.telemetry.SetOutboxBacklog(float64(pending))
	}
	w.telemetry.RecordOutboxBatch("ok", time.Since(start))
	return sent, nil
}

func (w *Worker) deliver(ctx context.Context, job domain.NotificationJob) bool {
	payload := domain.Payload(job.Payload)
	ctx = jobContext(ctx, payload)
	log := ctxlogger.WithContext(ctx, w.log).With(
		zap.String("job_id", job.JobID),
		zap.String("kind", string(job.Kind)),
	)

	data := make(map[string]any, len(payload))
	for key, value := range payload {
		data[key] = value
	}

	sendErr := w.email.SendTemplate(ctx, []string{payload.Recipient()}, string(job.Kind), data)
	now := w.clock.Now()
	attempts := job.Attempts + 1

	if sendErr == nil {
		if err := w.repo.MarkSent(ctx, job.ID, now); err != nil {
			log.Error("failed to mark notification sent", zap.Error(err))
		}
		w.telemetry.RecordDelivery(string(job.Kind), string(domain.StatusSent))
		w.otelMetric.RecordNotification(ctx, string(job.Kind), string(domain.StatusSent))
		return true
	}

	log.Error("notification delivery failed", zap.Int("attempt", attempts), zap.Error(sendErr))
	if attempts >= w.maxAttempts {
		if err := w.repo.MarkFailed(ctx, job.ID, attempts, sendErr.Error(), now); err != nil {
			log.Error("failed to mark notification failed", zap.Error(err))
		}
		w.telemetry.RecordDelivery(string(job.Kind), string(domain.StatusFailed))
		w.otelMetric.RecordNotification(ctx, string(job.Kind), string(domain.StatusFailed))
		return false
	}

	if err := w.repo.MarkRetry(ctx, job.ID, attempts, sendErr.Error(), now.Add(backoff(attempts)), now); err != nil {
		log.Error("failed to reschedule notification", zap.Error(err))
	}
	w.telemetry.RecordDelivery(string(job.Kind), "retry")
	return false
}

func backoff(attempts int) time.Duration {
	d := time.Duration(1<<uint(attempts)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func jobContext(ctx context.Context, payload domain.Payload) context.Context {
	if cid, ok := payload["_correlation_id"].(string); ok {
		ctx = correlation.ContextWithCorrelationID(ctx, cid)
	}
	traceID, _ := payload["_trace_id"].(string)
	spanID, _ := payload["_span_id"].(string)
	return correlation.ContextWithRemoteSpan(ctx, traceID, spanID)
}
