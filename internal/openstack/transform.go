package openstack

import (
	"time"

	"github.com/clusterops/usage-collector/internal/clock"
	"github.com/clusterops/usage-collector/internal/usage/domain"
)

const defaultRegion = "unknown"

// BuildProjectUsage aggregates the raw inventory into one usage event per
// known project. Projects with no bound servers still produce an event;
// their metrics default to absent except cpu_time_seconds, which is 0.
func BuildProjectUsage(
	clk clock.Clock,
	inv Inventory,
	windowStart time.Time,
	windowEnd time.Time,
) []domain.UsageEvent {
	domains := buildDomainMap(inv.Domains)
	projects, order := buildProjectMap(inv.Projects)
	serversByProject := buildServerMap(inv.Servers)
	vcpuByServer := buildNumericMap(inv.VCPUs, "uuid")
	cpuRateByServer := buildNumericMap(inv.CPUUsagePerDay, "uuid")
	cpuTimeByServer := buildNumericMap(inv.CPUTimeSeconds, "uuid")
	memoryCurrentByServer := buildMemoryMap(inv.MemoryCurrent, "kb")
	memoryMaximumByServer := buildMemoryMap(inv.MemoryMaximum, "kb")
	storageByServer := buildMemoryMap(inv.StorageAllocated, "b")

	// The project info series omits name and domain for some deployments;
	// backfill from the project-server series, then from the domain map.
	for _, sample := range inv.ProjectServers {
		projectID := sample.Label("project_id")
		project, known := projects[projectID]
		if projectID == "" || !known {
			continue
		}
		if project.Name == "" {
			project.Name = sample.Label("project_name")
		}
		if project.DomainName == "" {
			project.DomainName = sample.Label("domain_name")
		}
	}
	for _, project := range projects {
		if project.DomainName == "" && project.DomainID != "" {
			if dom, ok := domains[project.DomainID]; ok {
				project.DomainName = dom.Name
			}
		}
	}

	events := make([]domain.UsageEvent, 0, len(order))
	for _, projectID := range order {
		project := projects[projectID]

		region := project.Region
		if region == "" {
			region = defaultRegion
		}

		identities := buildProjectIdentities(project.Name, project.Description)

		projectServers := serversByProject[projectID]
		serverContext := make([]domain.ServerUsage, 0, len(projectServers))

		var (
			totalVCPUs       int64
			totalRAMCurrent  int64
			totalRAMMaximum  int64
			totalStorage     int64
			totalCPUTime     float64
			weightedCPUUsage float64
		)

		for _, srv := range projectServers {
			vcpus := int64(lookupByKeys(vcpuByServer, srv.UUID, srv.ServerID))
			memoryCurrent := lookupByKeys(memoryCurrentByServer, srv.UUID, srv.ServerID)
			memoryMaximum := lookupByKeys(memoryMaximumByServer, srv.UUID, srv.ServerID)
			storage := lookupByKeys(storageByServer, srv.UUID, srv.ServerID)
			cpuRate := lookupByKeys(cpuRateByServer, srv.UUID, srv.ServerID)
			cpuTime := lookupByKeys(cpuTimeByServer, srv.UUID, srv.ServerID)

			// Point-in-time utilization estimate, not a windowed average.
			var usedCPUPercent *int64
			if vcpus > 0 && cpuRate != 0 {
				percent := int64(cpuRate * 100.0 / float64(vcpus))
				usedCPUPercent = &percent
			}

			totalVCPUs += vcpus
			totalRAMCurrent += memoryCurrent
			totalRAMMaximum += memoryMaximum
			totalStorage += storage
			totalCPUTime += cpuTime
			if vcpus > 0 && cpuRate != 0 {
				weightedCPUUsage += cpuRate * 100.0
			}

			serverCPUTime := int64(cpuTime)
			serverContext = append(serverContext, domain.ServerUsage{
				ServerID:            srv.ServerID,
				UUID:                srv.UUID,
				Name:                stringOrNil(srv.Name),
				Region:              stringOrNil(srv.Region),
				VCPUs:               nilIfZero(vcpus),
				MemoryCurrentBytes:  nilIfZero(memoryCurrent),
				MemoryMaximumBytes:  nilIfZero(memoryMaximum),
				StorageBytesAlloced: nilIfZero(storage),
				UsedCPUPercent:      usedCPUPercent,
				CPUTimeSeconds:      nilIfZero(serverCPUTime),
			})
		}

		// Vcpu-weighted average: bigger servers pull the project figure
		// proportionally harder than a simple mean would.
		var projectCPUPercent *int64
		if totalVCPUs > 0 && weightedCPUUsage != 0 {
			percent := int64(weightedCPUUsage / float64(totalVCPUs))
			projectCPUPercent = &percent
		}

		metrics := domain.UsageMetrics{
			CPUTimeSeconds:        int64(totalCPUTime),
			RAMBytesAllocated:     nilIfZero(totalRAMMaximum),
			RAMBytesUsed:          nilIfZero(totalRAMCurrent),
			StorageBytesAllocated: nilIfZero(totalStorage),
			VCPUsAllocated:        nilIfZero(totalVCPUs),
			UsedCPUPercent:        projectCPUPercent,
		}

		projectLabel := project.Name
		if projectLabel == "" {
			projectLabel = projectID
		}
		ctx := domain.EventContext{
			Cloud: &domain.CloudContext{
				Cloud:     "openstack",
				Project:   projectLabel,
				ProjectID: projectID,
				Domain:    stringOrNil(project.DomainName),
				DomainID:  stringOrNil(project.DomainID),
				Region:    region,
				VMCount:   len(projectServers),
				Servers:   serverContext,
			},
		}

		events = append(events, domain.NewEvent(
			clk,
			domain.SourceOpenStack,
			windowStart,
			windowEnd,
			metrics,
			ctx,
			identities,
			nil,
		))
	}

	return events
}

func nilIfZero(value int64) *int64 {
	if value == 0 {
		return nil
	}
	return &value
}

func stringOrNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
