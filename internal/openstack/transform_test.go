package openstack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterops/usage-collector/internal/clock"
	"github.com/clusterops/usage-collector/internal/usage/domain"
)

var (
	collectedAt = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	windowEnd   = collectedAt
	windowStart = windowEnd.Add(-24 * time.Hour)
)

func buildEvents(t *testing.T, inv Inventory) []domain.UsageEvent {
	t.Helper()
	return BuildProjectUsage(clock.NewFakeClock(collectedAt), inv, windowStart, windowEnd)
}

func TestBuildProjectUsage_SingleServer(t *testing.T) {
	inv := Inventory{
		Projects: []Sample{
			infoSample(map[string]string{"id": "p1", "name": "physics", "domain_id": "d1", "region": "brno"}),
		},
		Domains: []Sample{
			infoSample(map[string]string{"domain_id": "d1", "domain_name": "einfra"}),
		},
		Servers: []Sample{
			infoSample(map[string]string{"project_id": "p1", "server_id": "s1", "uuid": "u1", "server_name": "sim-1"}),
		},
		VCPUs: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 4),
		},
		CPUUsagePerDay: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 0.8),
		},
		CPUTimeSeconds: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 12345.6),
		},
		MemoryCurrent: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 2048), // kb
		},
		MemoryMaximum: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 4096), // kb
		},
		StorageAllocated: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 1e9), // b
		},
	}

	events := buildEvents(t, inv)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, domain.SourceOpenStack, event.Source)
	assert.Equal(t, "1.0", event.SchemaVersion)
	assert.Equal(t, collectedAt, event.CollectedAt)
	assert.Equal(t, windowStart, event.TimeWindowStart)
	assert.Equal(t, windowEnd, event.TimeWindowEnd)

	metrics := event.Metrics
	assert.Equal(t, int64(12345), metrics.CPUTimeSeconds)
	require.NotNil(t, metrics.VCPUsAllocated)
	assert.Equal(t, int64(4), *metrics.VCPUsAllocated)
	require.NotNil(t, metrics.RAMBytesUsed)
	assert.Equal(t, int64(2048*1024), *metrics.RAMBytesUsed)
	require.NotNil(t, metrics.RAMBytesAllocated)
	assert.Equal(t, int64(4096*1024), *metrics.RAMBytesAllocated)
	require.NotNil(t, metrics.StorageBytesAllocated)
	assert.Equal(t, int64(1e9), *metrics.StorageBytesAllocated)

	// Single server: project percent equals the server percent.
	require.NotNil(t, metrics.UsedCPUPercent)
	assert.Equal(t, int64(20), *metrics.UsedCPUPercent)

	cloud := event.Context.Cloud
	require.NotNil(t, cloud)
	assert.Equal(t, "physics", cloud.Project)
	assert.Equal(t, "p1", cloud.ProjectID)
	require.NotNil(t, cloud.Domain)
	assert.Equal(t, "einfra", *cloud.Domain)
	assert.Equal(t, "brno", cloud.Region)
	assert.Equal(t, 1, cloud.VMCount)

	require.Len(t, cloud.Servers, 1)
	srv := cloud.Servers[0]
	assert.Equal(t, "s1", srv.ServerID)
	assert.Equal(t, "u1", srv.UUID)
	require.NotNil(t, srv.UsedCPUPercent)
	assert.Equal(t, int64(20), *srv.UsedCPUPercent)
}

func TestBuildProjectUsage_WeightedCPUPercent(t *testing.T) {
	inv := Inventory{
		Projects: []Sample{infoSample(map[string]string{"id": "p1", "name": "grp"})},
		Servers: []Sample{
			infoSample(map[string]string{"project_id": "p1", "server_id": "s1", "uuid": "u1"}),
			infoSample(map[string]string{"project_id": "p1", "server_id": "s2", "uuid": "u2"}),
		},
		VCPUs: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 2),
			sampleWith(map[string]string{"uuid": "u2"}, 4),
		},
		// Cross-core rates: u1 runs 2 vcpus at 50% each, u2 runs 4 vcpus
		// at 25% each.
		CPUUsagePerDay: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 1.0),
			sampleWith(map[string]string{"uuid": "u2"}, 1.0),
		},
	}

	events := buildEvents(t, inv)
	require.Len(t, events, 1)

	cloud := events[0].Context.Cloud
	require.NotNil(t, cloud)
	require.Len(t, cloud.Servers, 2)
	require.NotNil(t, cloud.Servers[0].UsedCPUPercent)
	assert.Equal(t, int64(50), *cloud.Servers[0].UsedCPUPercent)
	require.NotNil(t, cloud.Servers[1].UsedCPUPercent)
	assert.Equal(t, int64(25), *cloud.Servers[1].UsedCPUPercent)

	// floor((2*50 + 4*25) / 6) = floor(200/6) = 33, not the simple mean
	// of the two server percents.
	require.NotNil(t, events[0].Metrics.UsedCPUPercent)
	assert.Equal(t, int64(33), *events[0].Metrics.UsedCPUPercent)
}

func TestBuildProjectUsage_ServerMissingRateContributesNoWeight(t *testing.T) {
	inv := Inventory{
		Projects: []Sample{infoSample(map[string]string{"id": "p1"})},
		Servers: []Sample{
			infoSample(map[string]string{"project_id": "p1", "server_id": "s1", "uuid": "u1"}),
			infoSample(map[string]string{"project_id": "p1", "server_id": "s2", "uuid": "u2"}),
		},
		VCPUs: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 2),
			sampleWith(map[string]string{"uuid": "u2"}, 6),
		},
		CPUUsagePerDay: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 1.0),
		},
	}

	events := buildEvents(t, inv)
	require.Len(t, events, 1)

	// u2 has vcpus but no rate: its vcpus still count in the denominator,
	// but it adds no weighted term. floor(100/8) = 12.
	require.NotNil(t, events[0].Metrics.UsedCPUPercent)
	assert.Equal(t, int64(12), *events[0].Metrics.UsedCPUPercent)
}

func TestBuildProjectUsage_ZeroServerProject(t *testing.T) {
	inv := Inventory{
		Projects: []Sample{infoSample(map[string]string{"id": "p1", "name": "idle"})},
	}

	events := buildEvents(t, inv)
	require.Len(t, events, 1)

	metrics := events[0].Metrics
	assert.Equal(t, int64(0), metrics.CPUTimeSeconds)
	assert.Nil(t, metrics.VCPUsAllocated)
	assert.Nil(t, metrics.RAMBytesAllocated)
	assert.Nil(t, metrics.RAMBytesUsed)
	assert.Nil(t, metrics.StorageBytesAllocated)
	assert.Nil(t, metrics.UsedCPUPercent)

	cloud := events[0].Context.Cloud
	require.NotNil(t, cloud)
	assert.Equal(t, 0, cloud.VMCount)
	assert.Empty(t, cloud.Servers)
	assert.Equal(t, "unknown", cloud.Region)
}

func TestBuildProjectUsage_FallbackToServerID(t *testing.T) {
	inv := Inventory{
		Projects: []Sample{infoSample(map[string]string{"id": "p1"})},
		Servers: []Sample{
			infoSample(map[string]string{"project_id": "p1", "server_id": "s1", "uuid": "u1"}),
		},
		// vcpus resolve by uuid, rate only by server id; each metric falls
		// back independently.
		VCPUs: []Sample{
			sampleWith(map[string]string{"uuid": "u1"}, 4),
		},
		CPUUsagePerDay: []Sample{
			sampleWith(map[string]string{"uuid": "s1"}, 0.8),
		},
	}

	events := buildEvents(t, inv)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Metrics.UsedCPUPercent)
	assert.Equal(t, int64(20), *events[0].Metrics.UsedCPUPercent)
}

func TestBuildProjectUsage_EnrichesProjectFromOtherSeries(t *testing.T) {
	inv := Inventory{
		Projects: []Sample{infoSample(map[string]string{"id": "p1", "domain_id": "d1"})},
		ProjectServers: []Sample{
			infoSample(map[string]string{"project_id": "p1", "project_name": "filled-in"}),
		},
		Domains: []Sample{
			infoSample(map[string]string{"domain_id": "d1", "domain_name": "einfra"}),
		},
	}

	events := buildEvents(t, inv)
	require.Len(t, events, 1)

	cloud := events[0].Context.Cloud
	require.NotNil(t, cloud)
	assert.Equal(t, "filled-in", cloud.Project)
	require.NotNil(t, cloud.Domain)
	assert.Equal(t, "einfra", *cloud.Domain)
}

func TestBuildProjectUsage_PersonalProjectIdentity(t *testing.T) {
	inv := Inventory{
		Projects: []Sample{infoSample(map[string]string{
			"id":          "p1",
			"name":        "jdoe",
			"description": "Personal project of J. Doe, contact jdoe@example.org",
		})},
	}

	events := buildEvents(t, inv)
	require.Len(t, events, 1)
	require.Len(t, events[0].Identities, 1)
	assert.Equal(t, domain.SchemeSubjectIdentifier, events[0].Identities[0].Scheme)
	assert.Equal(t, "jdoe", events[0].Identities[0].Value)
}
