// Package domain contains the canonical usage-event schema shared by all
// collection sources.
package domain

import (
	"time"
)

// SchemaVersion identifies the event schema for downstream compatibility.
const SchemaVersion = "1.0"

// Source identifies which backend produced a usage event.
type Source string

const (
	SourcePBS       Source = "pbs"
	SourceOpenStack Source = "openstack"
)

// Identity scheme tags. Identities are append-only evidence about the
// usage subject and are not deduplicated here.
const (
	SchemeSubjectIdentifier = "subject-identifier"
	SchemeUserEmail         = "user-email"
	SchemeSchedulerUsername = "scheduler-username"
)

// UsageMetrics holds normalized resource consumption figures. Nil means
// "not measured", not zero.
type UsageMetrics struct {
	CPUTimeSeconds        int64  `json:"cpu_time_seconds"`
	GPUTimeSeconds        *int64 `json:"gpu_time_seconds"`
	RAMBytesAllocated     *int64 `json:"ram_bytes_allocated"`
	RAMBytesUsed          *int64 `json:"ram_bytes_used"`
	StorageBytesAllocated *int64 `json:"storage_bytes_allocated"`
	VCPUsAllocated        *int64 `json:"vcpus_allocated"`
	UsedCPUPercent        *int64 `json:"used_cpu_percent"`
	WalltimeAllocated     *int64 `json:"walltime_allocated"`
	WalltimeUsed          *int64 `json:"walltime_used"`
}

// Identity names a subject the usage belongs to.
type Identity struct {
	Scheme    string `json:"scheme"`
	Value     string `json:"value"`
	Authority string `json:"authority,omitempty"`
}

// UsageEvent is a single normalized usage record for one collection window.
type UsageEvent struct {
	SchemaVersion   string         `json:"schema_version"`
	Source          Source         `json:"source"`
	TimeWindowStart time.Time      `json:"time_window_start"`
	TimeWindowEnd   time.Time      `json:"time_window_end"`
	CollectedAt     time.Time      `json:"collected_at"`
	ProjectName     *string        `json:"project_name"`
	Metrics         UsageMetrics   `json:"metrics"`
	Identities      []Identity     `json:"identities"`
	Context         EventContext   `json:"context"`
	Extra           map[string]any `json:"extra"`
}
