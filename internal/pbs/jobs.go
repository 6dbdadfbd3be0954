// Package pbs normalizes scheduler job records and accounting rows into
// canonical usage events. Live jobs arrive as flat attribute maps with
// Resource_List.* / resources_used.* keys; accounting rows arrive with
// native numeric columns.
package pbs

import (
	"strings"
	"time"

	"github.com/clusterops/usage-collector/internal/clock"
	"github.com/clusterops/usage-collector/internal/convert"
	"github.com/clusterops/usage-collector/internal/usage/domain"
)

// DefaultProject attributes jobs submitted without an explicit project.
const DefaultProject = "_pbs_project_default"

// ownerRealmSuffix is appended to job owners by the scheduler; stripping
// it yields the bare username.
const ownerRealmSuffix = "@META"

// Job is one live scheduler job as a flat attribute map.
type Job map[string]string

// ownerToUsername strips the realm suffix (case-insensitively) from a raw
// Job_Owner value.
func ownerToUsername(raw string) string {
	username := strings.TrimSpace(raw)
	if strings.HasSuffix(strings.ToUpper(username), ownerRealmSuffix) {
		username = username[:len(username)-len(ownerRealmSuffix)]
	}
	return username
}

// normalizePercent converts a raw scheduler cpupercent (per-job, scales
// with core count) to a 0-100 per-core figure.
func normalizePercent(rawPercent, vcpus *int64) *int64 {
	if rawPercent == nil || vcpus == nil || *vcpus == 0 {
		return nil
	}
	normalized := *rawPercent / *vcpus
	return &normalized
}

// BuildJobEvents converts live scheduler jobs into usage events, one per
// job.
func BuildJobEvents(
	clk clock.Clock,
	jobs []Job,
	windowStart time.Time,
	windowEnd time.Time,
) []domain.UsageEvent {
	events := make([]domain.UsageEvent, 0, len(jobs))

	for _, job := range jobs {
		project := job["project"]
		if project == "" {
			project = DefaultProject
		}

		var cpuSeconds int64
		if parsed := convert.ParseHMS(job["resources_used.cput"]); parsed != nil {
			cpuSeconds = *parsed
		}
		vcpus := convert.ToInt64(job["resources_used.ncpus"])

		metrics := domain.UsageMetrics{
			CPUTimeSeconds:    cpuSeconds,
			RAMBytesAllocated: convert.ParseMemoryBytes(job["Resource_List.mem"], ""),
			RAMBytesUsed:      convert.ParseMemoryBytes(job["resources_used.mem"], ""),
			VCPUsAllocated:    vcpus,
			UsedCPUPercent:    normalizePercent(convert.ToInt64(job["resources_used.cpupercent"]), vcpus),
			WalltimeAllocated: convert.ParseHMS(job["Resource_List.walltime"]),
			WalltimeUsed:      convert.ParseHMS(job["resources_used.walltime"]),
		}

		var identities []domain.Identity
		if username := ownerToUsername(job["Job_Owner"]); username != "" {
			identities = append(identities, domain.Identity{
				Scheme: domain.SchemeSchedulerUsername,
				Value:  username,
			})
		}

		jobName := job["Job_Name"]
		ctx := domain.EventContext{
			Job: &domain.JobContext{
				JobName: stringOrNil(jobName),
				Project: project,
			},
		}

		projectName := project
		events = append(events, domain.NewEvent(
			clk,
			domain.SourcePBS,
			windowStart,
			windowEnd,
			metrics,
			ctx,
			identities,
			&projectName,
		))
	}

	return events
}

func stringOrNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
