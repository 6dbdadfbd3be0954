package accountingdb

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAccountingDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
		CREATE TABLE acct_user (
			acct_user_id INTEGER PRIMARY KEY,
			user_name    TEXT NOT NULL
		)`).Error)
	require.NoError(t, db.Exec(`
		CREATE TABLE acct_pbs_record (
			acct_pbs_record_id INTEGER PRIMARY KEY,
			acct_user_id       INTEGER NOT NULL,
			create_time        INTEGER,
			date_time          INTEGER,
			end_time           INTEGER,
			jobname            TEXT,
			req_mem            INTEGER,
			req_walltime       INTEGER,
			start_time         INTEGER,
			used_cpupercent    INTEGER,
			used_cputime       INTEGER,
			used_mem           INTEGER,
			used_ncpus         INTEGER,
			used_walltime      INTEGER
		)`).Error)

	return db
}

func insertUser(t *testing.T, db *gorm.DB, id int64, name string) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO acct_user (acct_user_id, user_name) VALUES (?, ?)`,
		id, name,
	).Error)
}

func insertRecord(t *testing.T, db *gorm.DB, userID, endTime int64, jobName string) {
	t.Helper()
	require.NoError(t, db.Exec(`
		INSERT INTO acct_pbs_record
			(acct_user_id, create_time, date_time, end_time, jobname,
			 req_mem, req_walltime, start_time, used_cpupercent,
			 used_cputime, used_mem, used_ncpus, used_walltime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, endTime-7200, endTime, endTime, jobName,
		8589934592, 86400, endTime-3600, 380,
		3400, 4294967296, 4, 3600,
	).Error)
}

func TestRecords_WindowFilterAndOrdering(t *testing.T) {
	db := setupAccountingDB(t)
	repo := New(db, zap.NewNop())

	start := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	insertUser(t, db, 1, "alice")
	insertUser(t, db, 2, "bob")

	insertRecord(t, db, 1, start.Unix()-1, "before-window")
	insertRecord(t, db, 2, start.Add(12*time.Hour).Unix(), "mid-window")
	insertRecord(t, db, 1, start.Unix(), "window-start")
	insertRecord(t, db, 1, end.Unix(), "window-end-excluded")

	records, err := repo.Records(context.Background(), start, end)
	require.NoError(t, err)

	require.Len(t, records, 2, "window is inclusive of start, exclusive of end")
	require.NotNil(t, records[0].JobName)
	require.NotNil(t, records[1].JobName)
	assert.Equal(t, "window-start", *records[0].JobName)
	assert.Equal(t, "mid-window", *records[1].JobName)
	assert.Equal(t, "alice", records[0].UserName)
	assert.Equal(t, "bob", records[1].UserName)
}

func TestRecords_ColumnMapping(t *testing.T) {
	db := setupAccountingDB(t)
	repo := New(db, zap.NewNop())

	start := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	insertUser(t, db, 7, "carol")
	insertRecord(t, db, 7, start.Add(time.Hour).Unix(), "mapped")

	records, err := repo.Records(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	require.NotNil(t, record.UsedCPUTime)
	assert.Equal(t, int64(3400), *record.UsedCPUTime)
	require.NotNil(t, record.ReqMem)
	assert.Equal(t, int64(8589934592), *record.ReqMem)
	require.NotNil(t, record.UsedMem)
	assert.Equal(t, int64(4294967296), *record.UsedMem)
	require.NotNil(t, record.UsedNCPUs)
	assert.Equal(t, int64(4), *record.UsedNCPUs)
	require.NotNil(t, record.UsedCPUPercent)
	assert.Equal(t, int64(380), *record.UsedCPUPercent)
	require.NotNil(t, record.ReqWalltime)
	assert.Equal(t, int64(86400), *record.ReqWalltime)
	require.NotNil(t, record.UsedWalltime)
	assert.Equal(t, int64(3600), *record.UsedWalltime)
	assert.Equal(t, "carol", record.UserName)
}

func TestRecords_EmptyWindow(t *testing.T) {
	db := setupAccountingDB(t)
	repo := New(db, zap.NewNop())

	start := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	records, err := repo.Records(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecords_NullColumnsScanAsNil(t *testing.T) {
	db := setupAccountingDB(t)
	repo := New(db, zap.NewNop())

	start := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	insertUser(t, db, 3, "dave")
	require.NoError(t, db.Exec(`
		INSERT INTO acct_pbs_record (acct_user_id, end_time)
		VALUES (?, ?)`,
		3, start.Add(time.Hour).Unix(),
	).Error)

	records, err := repo.Records(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Nil(t, record.JobName)
	assert.Nil(t, record.UsedCPUTime)
	assert.Nil(t, record.ReqMem)
	assert.Nil(t, record.UsedWalltime)
	assert.Equal(t, "dave", record.UserName)
}
