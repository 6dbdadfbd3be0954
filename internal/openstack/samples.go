// Package openstack turns raw metrics-store samples into per-project
// usage events: it joins servers to projects and projects to domains,
// converts units, and aggregates per-server figures into project totals.
package openstack

// Sample is one row returned by the metrics store for a named query: a
// flat label set plus, for numeric series, the instant value. Value is
// nil for info-only series.
type Sample struct {
	Metric map[string]string
	Value  *float64
}

// Label returns the named label, empty when missing.
func (s Sample) Label(name string) string {
	return s.Metric[name]
}

// Inventory bundles the raw sample sets for one collection cycle.
type Inventory struct {
	Domains          []Sample
	Projects         []Sample
	ProjectServers   []Sample
	Servers          []Sample
	VCPUs            []Sample
	CPUUsagePerDay   []Sample
	CPUTimeSeconds   []Sample
	MemoryCurrent    []Sample
	MemoryMaximum    []Sample
	StorageAllocated []Sample
}
