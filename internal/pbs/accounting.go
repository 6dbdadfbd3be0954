package pbs

import (
	"time"

	"github.com/clusterops/usage-collector/internal/clock"
	"github.com/clusterops/usage-collector/internal/usage/domain"
)

// AccountingRecord is one finished-job row from the scheduler's
// accounting database, already joined to the user table. Columns the
// accounting daemon may leave NULL are pointers.
type AccountingRecord struct {
	CreateTime     *int64  `gorm:"column:create_time"`
	DateTime       *int64  `gorm:"column:date_time"`
	EndTime        *int64  `gorm:"column:end_time"`
	JobName        *string `gorm:"column:jobname"`
	ReqMem         *int64  `gorm:"column:req_mem"`
	ReqWalltime    *int64  `gorm:"column:req_walltime"`
	StartTime      *int64  `gorm:"column:start_time"`
	UsedCPUPercent *int64  `gorm:"column:used_cpupercent"`
	UsedCPUTime    *int64  `gorm:"column:used_cputime"`
	UsedMem        *int64  `gorm:"column:used_mem"`
	UsedNCPUs      *int64  `gorm:"column:used_ncpus"`
	UsedWalltime   *int64  `gorm:"column:used_walltime"`
	UserName       string  `gorm:"column:user_name"`
}

// BuildAccountingEvents converts accounting rows into usage events, one
// per row. The accounting schema carries no project attribution, so every
// event lands on the default project. An inverted window is clamped so
// the event never reports end < start.
func BuildAccountingEvents(
	clk clock.Clock,
	records []AccountingRecord,
	windowStart time.Time,
	windowEnd time.Time,
) []domain.UsageEvent {
	if windowEnd.Before(windowStart) {
		windowEnd = windowStart
	}

	events := make([]domain.UsageEvent, 0, len(records))
	for _, record := range records {
		var cpuSeconds int64
		if record.UsedCPUTime != nil {
			cpuSeconds = *record.UsedCPUTime
		}

		metrics := domain.UsageMetrics{
			CPUTimeSeconds:    cpuSeconds,
			RAMBytesAllocated: record.ReqMem,
			RAMBytesUsed:      record.UsedMem,
			VCPUsAllocated:    record.UsedNCPUs,
			UsedCPUPercent:    normalizePercent(record.UsedCPUPercent, record.UsedNCPUs),
			WalltimeAllocated: record.ReqWalltime,
			WalltimeUsed:      record.UsedWalltime,
		}

		var identities []domain.Identity
		if record.UserName != "" {
			identities = append(identities, domain.Identity{
				Scheme: domain.SchemeSchedulerUsername,
				Value:  record.UserName,
			})
		}

		project := DefaultProject
		ctx := domain.EventContext{
			Job: &domain.JobContext{
				JobName: record.JobName,
				Project: project,
			},
		}

		events = append(events, domain.NewEvent(
			clk,
			domain.SourcePBS,
			windowStart,
			windowEnd,
			metrics,
			ctx,
			identities,
			&project,
		))
	}

	return events
}

// CombineEvents concatenates live-job and accounting events, live jobs
// first, preserving each sublist's order. A job finishing between the two
// fetches can appear in both; downstream tolerates at-least-once.
func CombineEvents(jobEvents, accountingEvents []domain.UsageEvent) []domain.UsageEvent {
	combined := make([]domain.UsageEvent, 0, len(jobEvents)+len(accountingEvents))
	combined = append(combined, jobEvents...)
	combined = append(combined, accountingEvents...)
	return combined
}
