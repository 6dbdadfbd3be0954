package domain

import (
	"encoding/json"
)

// EventContext carries supplementary, source-specific fields. It is a
// closed union of the known per-source shapes with an open escape hatch;
// on the wire it flattens into a single string-keyed object.
type EventContext struct {
	Cloud      *CloudContext
	Job        *JobContext
	Additional map[string]any
}

// CloudContext describes a cloud project and its per-server breakdown.
type CloudContext struct {
	Cloud     string        `json:"cloud"`
	Project   string        `json:"project"`
	ProjectID string        `json:"project_id"`
	Domain    *string       `json:"domain"`
	DomainID  *string       `json:"domain_id"`
	Region    string        `json:"region"`
	VMCount   int           `json:"vm_count"`
	Servers   []ServerUsage `json:"servers"`
}

// ServerUsage is the audit breakdown for one server inside a project
// event. Nil fields were not resolvable from any sample set.
type ServerUsage struct {
	ServerID            string  `json:"server_id"`
	UUID                string  `json:"uuid"`
	Name                *string `json:"name"`
	Region              *string `json:"region"`
	VCPUs               *int64  `json:"vcpus"`
	MemoryCurrentBytes  *int64  `json:"memory_current_bytes"`
	MemoryMaximumBytes  *int64  `json:"memory_maximum_bytes"`
	StorageBytesAlloced *int64  `json:"storage_allocated_bytes"`
	UsedCPUPercent      *int64  `json:"used_cpu_percent"`
	CPUTimeSeconds      *int64  `json:"cpu_time_seconds"`
}

// JobContext describes one scheduler job.
type JobContext struct {
	JobName *string `json:"jobname"`
	Project string  `json:"project"`
}

// MarshalJSON flattens the populated arm and any additional fields into
// one object so the wire shape stays an open map.
func (c EventContext) MarshalJSON() ([]byte, error) {
	merged := map[string]any{}

	var arm any
	switch {
	case c.Cloud != nil:
		arm = c.Cloud
	case c.Job != nil:
		arm = c.Job
	}
	if arm != nil {
		encoded, err := json.Marshal(arm)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(encoded, &merged); err != nil {
			return nil, err
		}
	}

	for key, value := range c.Additional {
		merged[key] = value
	}

	return json.Marshal(merged)
}
