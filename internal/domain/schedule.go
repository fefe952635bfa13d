package domain

import (
	"database/sql"
	"time"
)

// ScanSchedule is a recurring scan definition. Each cron trigger submits a
// fresh ScanJob with the stored query and time filter.
type ScanSchedule struct {
	ID         string       `db:"id"          json:"id"`
	Name       string       `db:"name"        json:"name,omitempty"`
	JobType    string       `db:"job_type"    json:"job_type"`
	Query      string       `db:"query"       json:"query"`
	TimeFilter string       `db:"time_filter" json:"time_filter"`
	CronExpr   string       `db:"cron_expr"   json:"cron_expr"`
	Enabled    bool         `db:"enabled"     json:"enabled"`
	LastRunAt  sql.NullTime `db:"last_run_at" json:"last_run_at"`
	CreatedAt  time.Time    `db:"created_at"  json:"created_at"`
}
