// Package accountingdb reads finished-job rows from the scheduler's
// accounting database.
package accountingdb

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clusterops/usage-collector/internal/pbs"
)

// Repository queries the external accounting schema. Read-only; the
// accounting daemon owns the tables.
type Repository struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, log: logger.Named("accountingdb")}
}

// Records returns accounting rows whose end_time falls inside
// [start, end), joined to the user table for the resolved username.
// Rows are filtered before the join to keep the scan on the indexed
// end_time column.
func (r *Repository) Records(ctx context.Context, start, end time.Time) ([]pbs.AccountingRecord, error) {
	var records []pbs.AccountingRecord

	err := r.db.WithContext(ctx).Raw(`
		SELECT
			apr.create_time,
			apr.date_time,
			apr.end_time,
			apr.jobname,
			apr.req_mem,
			apr.req_walltime,
			apr.start_time,
			apr.used_cpupercent,
			apr.used_cputime,
			apr.used_mem,
			apr.used_ncpus,
			apr.used_walltime,
			au.user_name
		FROM (
			SELECT *
			FROM acct_pbs_record
			WHERE end_time >= ? AND end_time < ?
		) apr
		JOIN acct_user au ON apr.acct_user_id = au.acct_user_id
		ORDER BY apr.end_time`,
		start.Unix(),
		end.Unix(),
	).Scan(&records).Error
	if err != nil {
		return nil, fmt.Errorf("fetch accounting records: %w", err)
	}

	r.log.Info("fetched accounting records",
		zap.Int("rows", len(records)),
		zap.Time("window_start", start),
		zap.Time("window_end", end),
	)
	return records, nil
}
