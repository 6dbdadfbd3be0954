// Package collector runs the collection cycle: fetch raw datasets from
// the three backends, normalize them into canonical usage events, and
// hand the combined batch to delivery.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/clusterops/usage-collector/internal/clock"
	"github.com/clusterops/usage-collector/internal/config"
	obsmetrics "github.com/clusterops/usage-collector/internal/observability/metrics"
	"github.com/clusterops/usage-collector/internal/openstack"
	"github.com/clusterops/usage-collector/internal/pbs"
	"github.com/clusterops/usage-collector/internal/usage/domain"
)

var ErrInvalidConfig = errors.New("collector: missing dependency")

// InventorySource fetches the raw OpenStack sample sets.
type InventorySource interface {
	CollectInventory(ctx context.Context) (openstack.Inventory, error)
}

// JobSource fetches currently running scheduler jobs.
type JobSource interface {
	RunningJobs(ctx context.Context) ([]pbs.Job, error)
}

// AccountingSource fetches finished-job rows for a window.
type AccountingSource interface {
	Records(ctx context.Context, start, end time.Time) ([]pbs.AccountingRecord, error)
}

// Sender delivers one cycle's events.
type Sender interface {
	SendEvents(ctx context.Context, events []domain.UsageEvent) error
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Config     config.Config
	Inventory  InventorySource
	Jobs       JobSource
	Accounting AccountingSource
	Sender     Sender
}

// Collector owns the poll loop and the per-cycle pipeline. The transform
// layer underneath is stateless; everything is rebuilt from fresh fetches
// each cycle.
type Collector struct {
	log        *zap.Logger
	clock      clock.Clock
	cfg        config.CollectorConfig
	inventory  InventorySource
	jobs       JobSource
	accounting AccountingSource
	sender     Sender
}

func New(p Params) (*Collector, error) {
	if p.Log == nil || p.Clock == nil || p.Inventory == nil || p.Jobs == nil || p.Accounting == nil || p.Sender == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.Collector
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Minute
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	return &Collector{
		log:        p.Log.Named("collector"),
		clock:      p.Clock,
		cfg:        cfg,
		inventory:  p.Inventory,
		jobs:       p.Jobs,
		accounting: p.Accounting,
		sender:     p.Sender,
	}, nil
}

// RunOnce executes one full collection cycle over the trailing window.
// Any fetch or delivery error aborts the cycle; the caller decides when
// to retry.
func (c *Collector) RunOnce(ctx context.Context) error {
	started := c.clock.Now()
	windowEnd := started
	windowStart := windowEnd.Add(-c.cfg.Window)

	log := c.log.With(zap.String("run_id", uuid.NewString()))
	log.Info("starting collection cycle",
		zap.Time("window_start", windowStart),
		zap.Time("window_end", windowEnd),
	)
	collectorMetrics := obsmetrics.Collector()

	err := c.collect(ctx, log, windowStart, windowEnd)
	collectorMetrics.ObserveCycleDuration(time.Since(started))
	if err != nil {
		collectorMetrics.IncCycle(obsmetrics.CycleStatusFailed)
		return err
	}
	collectorMetrics.IncCycle(obsmetrics.CycleStatusOK)
	return nil
}

func (c *Collector) collect(ctx context.Context, log *zap.Logger, windowStart, windowEnd time.Time) error {
	collectorMetrics := obsmetrics.Collector()

	inv, err := c.inventory.CollectInventory(ctx)
	if err != nil {
		return fmt.Errorf("collect openstack inventory: %w", err)
	}
	cloudEvents := openstack.BuildProjectUsage(c.clock, inv, windowStart, windowEnd)
	collectorMetrics.AddEventsBuilt(string(domain.SourceOpenStack), len(cloudEvents))
	log.Info("built cloud events", zap.Int("events", len(cloudEvents)))

	jobs, err := c.jobs.RunningJobs(ctx)
	if err != nil {
		return fmt.Errorf("fetch scheduler jobs: %w", err)
	}
	records, err := c.accounting.Records(ctx, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("fetch accounting records: %w", err)
	}

	jobEvents := pbs.BuildJobEvents(c.clock, jobs, windowStart, windowEnd)
	accountingEvents := pbs.BuildAccountingEvents(c.clock, records, windowStart, windowEnd)
	schedulerEvents := pbs.CombineEvents(jobEvents, accountingEvents)
	collectorMetrics.AddEventsBuilt(string(domain.SourcePBS), len(schedulerEvents))
	log.Info("built scheduler events",
		zap.Int("live", len(jobEvents)),
		zap.Int("accounting", len(accountingEvents)),
	)

	events := make([]domain.UsageEvent, 0, len(cloudEvents)+len(schedulerEvents))
	events = append(events, cloudEvents...)
	events = append(events, schedulerEvents...)
	if len(events) == 0 {
		log.Info("no events to send")
		return nil
	}

	if err := c.sender.SendEvents(ctx, events); err != nil {
		return fmt.Errorf("deliver events: %w", err)
	}
	log.Info("collection cycle complete", zap.Int("events", len(events)))
	return nil
}

// RunForever repeats collection cycles until ctx is cancelled, sleeping
// the configured interval between cycles and a shorter backoff after a
// failed one.
func (c *Collector) RunForever(ctx context.Context) {
	for {
		delay := c.cfg.Interval
		if err := c.RunOnce(ctx); err != nil {
			c.log.Warn("collection cycle failed", zap.Error(err), zap.Duration("backoff", c.cfg.ErrorBackoff))
			delay = c.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
