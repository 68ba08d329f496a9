package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportStatus captures background report job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob is the persisted metadata of an asynchronous usage report.
type ReportJob struct {
	ID           string       `db:"id" json:"id"`
	Params       ReportParams `db:"params" json:"params"`
	Status       ReportStatus `db:"status" json:"status"`
	Progress     int          `db:"progress" json:"progress"`
	ResultPath   *string      `db:"result_path" json:"-"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
}

// ReportParams is the reporting window, persisted as JSONB.
type ReportParams struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Value marshals params to JSON for persistence.
func (p ReportParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ReportParams) Scan(value interface{}) error {
	if value == nil {
		*p = ReportParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportParams", value)
	}
	if len(data) == 0 {
		*p = ReportParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report params: %w", err)
	}
	return nil
}

// UsageRow is one user's aggregated print activity inside a report window.
type UsageRow struct {
	UserID        string  `db:"user_id" json:"user_id"`
	FullName      string  `db:"full_name" json:"full_name"`
	Email         string  `db:"email" json:"email"`
	JobsTotal     int     `db:"jobs_total" json:"jobs_total"`
	JobsCompleted int     `db:"jobs_completed" json:"jobs_completed"`
	TotalHours    float64 `db:"total_hours" json:"total_hours"`
	TotalSpent    float64 `db:"total_spent" json:"total_spent"`
}
