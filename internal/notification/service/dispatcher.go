package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/carebridge/internal/clock"
	"github.com/smallbiznis/carebridge/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/carebridge/internal/observability/metrics"
	"github.com/smallbiznis/carebridge/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Repo    domain.Repository
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// OutboxDispatcher persists jobs for the worker. Schedule returns as soon
// as the row is written.
type OutboxDispatcher struct {
	log     *zap.Logger
	repo    domain.Repository
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func NewDispatcher(p Params) *OutboxDispatcher {
	return &OutboxDispatcher{
		log:     p.Log.Named("notification.dispatcher"),
		repo:    p.Repo,
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (d *OutboxDispatcher) Schedule(ctx context.Context, kind domain.Kind, payload domain.Payload) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	if payload.Recipient() == "" {
		return "", domain.ErrMissingRecipient
	}

	data := make(datatypes.JSONMap, len(payload)+3)
	for key, value := range payload {
		data[key] = value
	}
	for key, value := range correlation.Metadata(ctx) {
		data["_"+key] = value
	}

	now := d.clock.Now()
	job := &domain.NotificationJob{
		ID:        d.genID.Generate(),
		JobID:     ulid.Make().String(),
		Kind:      kind,
		Payload:   data,
		Status:    domain.StatusPending,
		RunAfter:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.repo.Enqueue(ctx, job); err != nil {
		d.metrics.RecordNotification(ctx, string(kind), "schedule_failed")
		return "", err
	}

	d.metrics.RecordNotification(ctx, string(kind), "scheduled")
	d.log.Debug("notification scheduled", zap.String("job_id", job.JobID), zap.String("kind", string(kind)))
	return job.JobID, nil
}
