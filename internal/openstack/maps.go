package openstack

import (
	"math"

	"github.com/clusterops/usage-collector/internal/convert"
)

type domainInfo struct {
	ID   string
	Name string
}

type projectInfo struct {
	ID          string
	Name        string
	DomainID    string
	DomainName  string
	Region      string
	Description string
}

type serverRef struct {
	ServerID string
	UUID     string
	Name     string
	Region   string
}

// buildDomainMap indexes domain samples by domain_id. Samples without the
// key label are skipped.
func buildDomainMap(samples []Sample) map[string]domainInfo {
	domains := make(map[string]domainInfo, len(samples))
	for _, sample := range samples {
		id := sample.Label("domain_id")
		if id == "" {
			continue
		}
		domains[id] = domainInfo{
			ID:   id,
			Name: sample.Label("domain_name"),
		}
	}
	return domains
}

// buildProjectMap indexes project samples by project id, preserving input
// order in the returned key slice so event output stays deterministic.
func buildProjectMap(samples []Sample) (map[string]*projectInfo, []string) {
	projects := make(map[string]*projectInfo, len(samples))
	order := make([]string, 0, len(samples))
	for _, sample := range samples {
		id := sample.Label("id")
		if id == "" {
			continue
		}
		if _, seen := projects[id]; !seen {
			order = append(order, id)
		}
		projects[id] = &projectInfo{
			ID:          id,
			Name:        sample.Label("name"),
			DomainID:    sample.Label("domain_id"),
			Region:      sample.Label("region"),
			Description: sample.Label("description"),
		}
	}
	return projects, order
}

// buildServerMap groups server samples by project_id.
func buildServerMap(samples []Sample) map[string][]serverRef {
	servers := make(map[string][]serverRef)
	for _, sample := range samples {
		projectID := sample.Label("project_id")
		serverID := sample.Label("server_id")
		if projectID == "" || serverID == "" {
			continue
		}
		servers[projectID] = append(servers[projectID], serverRef{
			ServerID: serverID,
			UUID:     sample.Label("uuid"),
			Name:     sample.Label("server_name"),
			Region:   sample.Label("region"),
		})
	}
	return servers
}

// buildNumericMap indexes sample values by the given key label. Duplicate
// keys are last-write-wins; the query layer returns one row per key in
// practice.
func buildNumericMap(samples []Sample, keyLabel string) map[string]float64 {
	values := make(map[string]float64, len(samples))
	for _, sample := range samples {
		key := sample.Label(keyLabel)
		if key == "" || sample.Value == nil || math.IsNaN(*sample.Value) {
			continue
		}
		values[key] = *sample.Value
	}
	return values
}

// buildMemoryMap indexes byte sizes by uuid, converting raw values
// expressed in unit into bytes.
func buildMemoryMap(samples []Sample, unit string) map[string]int64 {
	sizes := make(map[string]int64, len(samples))
	for _, sample := range samples {
		key := sample.Label("uuid")
		if key == "" || sample.Value == nil || math.IsNaN(*sample.Value) {
			continue
		}
		if bytes := convert.ScaleToBytes(math.Trunc(*sample.Value), unit); bytes != nil {
			sizes[key] = *bytes
		}
	}
	return sizes
}

// lookupByKeys resolves a metric by uuid first, falling back to server_id.
// A zero value under the primary key also falls through; zero means the
// series recorded nothing for that key. This is the single fallback
// policy for all numeric lookups.
func lookupByKeys[T int64 | float64](values map[string]T, primary, fallback string) T {
	var value T
	if primary != "" {
		value = values[primary]
	}
	if value == 0 && fallback != "" {
		value = values[fallback]
	}
	return value
}
