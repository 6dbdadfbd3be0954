// Package thanos fetches the raw OpenStack inventory series from the
// metrics store over the Prometheus HTTP API.
package thanos

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"
	apiv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/clusterops/usage-collector/internal/config"
	"github.com/clusterops/usage-collector/internal/openstack"
)

// Instant queries, one per inventory dataset.
const (
	queryDomains          = "custom_openstack_domain_info"
	queryProjects         = "openstack_identity_project_info"
	queryProjectServers   = "custom_openstack_project_info"
	queryServers          = "custom_openstack_server_info"
	queryVCPUs            = "count by (uuid) (libvirtd_domain_vcpu_time)"
	queryCPUUsagePerDay   = "sum by (uuid) (rate(libvirtd_domain_vcpu_time[24h])) / 1e9"
	queryCPUTimeSeconds   = "sum by (uuid)(libvirtd_domain_vcpu_time) / 1e9"
	queryMemoryCurrent    = "libvirtd_domain_balloon_current"
	queryMemoryMaximum    = "libvirtd_domain_balloon_maximum"
	queryStorageAllocated = "sum by (uuid) (libvirtd_domain_block_capacity)"
)

var ErrMissingEndpoint = errors.New("thanos endpoint is required")

// Client queries the metrics store for OpenStack inventory datasets.
type Client struct {
	api     apiv1.API
	timeout time.Duration
	log     *zap.Logger
}

// New builds a metrics-store client from config.
func New(cfg config.ThanosConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS},
	}
	var rt http.RoundTripper = transport
	if cfg.Username != "" && cfg.Password != "" {
		rt = &basicAuthRoundTripper{
			username: cfg.Username,
			password: cfg.Password,
			next:     transport,
		}
	}

	client, err := api.NewClient(api.Config{
		Address:      cfg.Endpoint,
		RoundTripper: rt,
	})
	if err != nil {
		return nil, fmt.Errorf("new thanos client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		api:     apiv1.NewAPI(client),
		timeout: timeout,
		log:     logger.Named("thanos"),
	}, nil
}

// CollectInventory runs every inventory query. Any query failure aborts
// the whole fetch; a partial inventory would silently undercount usage.
func (c *Client) CollectInventory(ctx context.Context) (openstack.Inventory, error) {
	var (
		inv openstack.Inventory
		err error
	)

	datasets := []struct {
		name  string
		query string
		dest  *[]openstack.Sample
	}{
		{"domains", queryDomains, &inv.Domains},
		{"projects", queryProjects, &inv.Projects},
		{"project_servers", queryProjectServers, &inv.ProjectServers},
		{"servers", queryServers, &inv.Servers},
		{"vcpu", queryVCPUs, &inv.VCPUs},
		{"cpu_usage_per_day", queryCPUUsagePerDay, &inv.CPUUsagePerDay},
		{"cpu_time_seconds", queryCPUTimeSeconds, &inv.CPUTimeSeconds},
		{"memory_current", queryMemoryCurrent, &inv.MemoryCurrent},
		{"memory_maximum", queryMemoryMaximum, &inv.MemoryMaximum},
		{"storage_allocated", queryStorageAllocated, &inv.StorageAllocated},
	}

	for _, dataset := range datasets {
		*dataset.dest, err = c.query(ctx, dataset.query)
		if err != nil {
			return openstack.Inventory{}, fmt.Errorf("query %s: %w", dataset.name, err)
		}
		c.log.Debug("dataset fetched",
			zap.String("dataset", dataset.name),
			zap.Int("samples", len(*dataset.dest)),
		)
	}

	return inv, nil
}

func (c *Client) query(ctx context.Context, query string) ([]openstack.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	value, warnings, err := c.api.Query(ctx, query, time.Now())
	if err != nil {
		return nil, err
	}
	for _, warning := range warnings {
		c.log.Warn("query warning", zap.String("query", query), zap.String("warning", warning))
	}

	vector, ok := value.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %q", value.Type())
	}

	samples := make([]openstack.Sample, 0, len(vector))
	for _, sample := range vector {
		labels := make(map[string]string, len(sample.Metric))
		for name, val := range sample.Metric {
			labels[string(name)] = string(val)
		}
		v := float64(sample.Value)
		samples = append(samples, openstack.Sample{Metric: labels, Value: &v})
	}
	return samples, nil
}

type basicAuthRoundTripper struct {
	username string
	password string
	next     http.RoundTripper
}

func (rt *basicAuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.SetBasicAuth(rt.username, rt.password)
	return rt.next.RoundTrip(cloned)
}
