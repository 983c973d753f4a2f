package domain

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunCounters mirrors the counters an ingestion run reports.
type RunCounters struct {
	Records      int64 `gorm:"not null;default:0"`
	Ranges       int64 `gorm:"not null;default:0"`
	Buckets      int64 `gorm:"not null;default:0"`
	SetMembers   int64 `gorm:"not null;default:0"`
	Skipped      int64 `gorm:"not null;default:0"`
	Unrecognized int64 `gorm:"not null;default:0"`
	Flushes      int64 `gorm:"not null;default:0"`
}

// ImportRun is one ingestion of a dump archive into the entry store.
type ImportRun struct {
	ID       string      `gorm:"primaryKey;size:36"`
	Source   string      `gorm:"size:128;not null;index:idx_import_runs_source_started,priority:1"`
	Archive  string      `gorm:"size:1024;not null;default:''"`
	Patterns PatternList `gorm:"type:text"`
	Status   RunStatus   `gorm:"size:16;not null;index"`

	RunCounters `gorm:"embedded"`

	Error      string    `gorm:"type:text;not null;default:''"`
	StartedAt  time.Time `gorm:"not null;index:idx_import_runs_source_started,priority:2,sort:desc"`
	FinishedAt *time.Time
}

// Duration is zero while the run is still in progress.
func (r ImportRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r ImportRun) Done() bool {
	return r.Status == RunSucceeded || r.Status == RunFailed
}
