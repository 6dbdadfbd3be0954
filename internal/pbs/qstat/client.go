// Package qstat fetches live job state from the scheduler by running
// qstat with JSON output.
package qstat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/clusterops/usage-collector/internal/config"
	"github.com/clusterops/usage-collector/internal/pbs"
)

// Client shells out to qstat against the configured scheduler server.
type Client struct {
	cfg config.PBSConfig
	log *zap.Logger
}

func New(cfg config.PBSConfig, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &Client{cfg: cfg, log: logger.Named("qstat")}
}

type statReply struct {
	Jobs map[string]map[string]any `json:"Jobs"`
}

// RunningJobs returns currently running jobs as flat attribute maps.
// Queued and held jobs are filtered out here so the transform only ever
// sees jobs that are consuming resources.
func (c *Client) RunningJobs(ctx context.Context) ([]pbs.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.QstatPath, "-f", "-F", "json")
	cmd.Env = append(os.Environ(), "PBS_DEFAULT="+c.cfg.Server)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("qstat against %s: %w (%s)", c.cfg.Server, err, stderr.String())
	}

	running, total, err := parseStat(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	c.log.Info("fetched scheduler jobs",
		zap.Int("total", total),
		zap.Int("running", len(running)),
	)
	return running, nil
}

// parseStat decodes a qstat JSON document into flat attribute maps,
// keeping only running jobs, in job-id order.
func parseStat(data []byte) ([]pbs.Job, int, error) {
	var reply statReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, 0, fmt.Errorf("decode qstat output: %w", err)
	}

	ids := make([]string, 0, len(reply.Jobs))
	for id := range reply.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var running []pbs.Job
	for _, id := range ids {
		job := flattenAttributes(reply.Jobs[id])
		if job["job_state"] != "R" {
			continue
		}
		running = append(running, job)
	}
	return running, len(reply.Jobs), nil
}

// flattenAttributes turns nested attribute objects such as Resource_List
// into dotted keys ("Resource_List.mem"), stringifying scalar values the
// way the scheduler's text interface would print them.
func flattenAttributes(attrs map[string]any) pbs.Job {
	job := make(pbs.Job, len(attrs))
	for key, value := range attrs {
		if nested, ok := value.(map[string]any); ok {
			for subKey, subValue := range nested {
				job[key+"."+subKey] = stringify(subValue)
			}
			continue
		}
		job[key] = stringify(value)
	}
	return job
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
