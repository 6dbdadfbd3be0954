// Package delivery ships usage events to the central accounting API in
// bounded batches.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clusterops/usage-collector/internal/config"
	obsmetrics "github.com/clusterops/usage-collector/internal/observability/metrics"
	"github.com/clusterops/usage-collector/internal/usage/domain"
)

const (
	collectorKeyHeader = "X-Collector-Key"
	eventsPath         = "/collector/resource-usage"
	defaultBatchMax    = 100
)

var (
	ErrMissingEndpoint = errors.New("delivery endpoint is required")
	ErrMissingAPIKey   = errors.New("delivery api key is required")
)

// Client posts event batches to the accounting API.
type Client struct {
	endpoint   string
	apiKey     string
	batchMax   int
	httpClient *http.Client
	log        *zap.Logger
}

// New builds a delivery client from config. Endpoint and API key are
// required; a missing value fails process startup rather than the first
// cycle.
func New(cfg config.DeliveryConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	batchMax := cfg.BatchMax
	if batchMax <= 0 {
		batchMax = defaultBatchMax
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		batchMax:   batchMax,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Named("delivery"),
	}, nil
}

// SendEvents delivers the full cycle's events in batches of at most
// batchMax. Every batch is attempted even after a failure; the aggregate
// error reports how much of the cycle did not make it so the caller can
// decide to rerun.
func (c *Client) SendEvents(ctx context.Context, events []domain.UsageEvent) error {
	if len(events) == 0 {
		c.log.Info("no events to send")
		return nil
	}

	deliveryMetrics := obsmetrics.Collector()
	total := len(events)
	batchCount := (total + c.batchMax - 1) / c.batchMax
	c.log.Info("sending events", zap.Int("events", total), zap.Int("batches", batchCount))

	var (
		sent      int
		failed    int
		batchErrs []error
	)
	for start := 0; start < total; start += c.batchMax {
		end := min(start+c.batchMax, total)
		batch := events[start:end]

		if err := c.sendBatch(ctx, batch); err != nil {
			failed += len(batch)
			batchErrs = append(batchErrs, err)
			deliveryMetrics.IncBatch(obsmetrics.BatchStatusFailed)
			deliveryMetrics.AddEventsShipped(obsmetrics.BatchStatusFailed, len(batch))
			c.log.Warn("batch failed", zap.Int("batch_size", len(batch)), zap.Error(err))
			continue
		}
		sent += len(batch)
		deliveryMetrics.IncBatch(obsmetrics.BatchStatusSent)
		deliveryMetrics.AddEventsShipped(obsmetrics.BatchStatusSent, len(batch))
	}

	c.log.Info("delivery summary", zap.Int("sent", sent), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("failed to send %d of %d events: %w", failed, total, errors.Join(batchErrs...))
	}
	return nil
}

func (c *Client) sendBatch(ctx context.Context, batch []domain.UsageEvent) error {
	payload, err := json.Marshal(map[string]any{"events": batch})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+eventsPath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(collectorKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("accounting api returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
