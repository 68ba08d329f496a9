package models

import "time"

// JobStatus represents the lifecycle state of a print job.
type JobStatus string

const (
	JobStatusPending     JobStatus = "PENDING"
	JobStatusUnderReview JobStatus = "UNDER_REVIEW"
	JobStatusApproved    JobStatus = "APPROVED"
	JobStatusAssigned    JobStatus = "ASSIGNED"
	JobStatusPrinting    JobStatus = "PRINTING"
	JobStatusPaused      JobStatus = "PAUSED"
	JobStatusCompleted   JobStatus = "COMPLETED"
	JobStatusRejected    JobStatus = "REJECTED"
	JobStatusCancelled   JobStatus = "CANCELLED"
	JobStatusFailed      JobStatus = "FAILED"
)

// AllJobStatuses enumerates every member of the closed status set.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusUnderReview,
	JobStatusApproved,
	JobStatusAssigned,
	JobStatusPrinting,
	JobStatusPaused,
	JobStatusCompleted,
	JobStatusRejected,
	JobStatusCancelled,
	JobStatusFailed,
}

// TerminalJobStatuses are the states that end the lifecycle. A job in any
// other state still occupies one of its owner's concurrency slots.
var TerminalJobStatuses = []JobStatus{
	JobStatusCompleted,
	JobStatusRejected,
	JobStatusCancelled,
	JobStatusFailed,
}

// Terminal reports whether the status ends the lifecycle.
func (s JobStatus) Terminal() bool {
	for _, terminal := range TerminalJobStatuses {
		if s == terminal {
			return true
		}
	}
	return false
}

// HoldsPrinter reports whether a job in this status may hold a printer reference.
func (s JobStatus) HoldsPrinter() bool {
	switch s {
	case JobStatusAssigned, JobStatusPrinting, JobStatusPaused, JobStatusCompleted:
		return true
	}
	return false
}

// Valid reports whether the status belongs to the closed set.
func (s JobStatus) Valid() bool {
	for _, known := range AllJobStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Material identifies a printable material type.
type Material string

const (
	MaterialPLA   Material = "PLA"
	MaterialABS   Material = "ABS"
	MaterialPETG  Material = "PETG"
	MaterialTPU   Material = "TPU"
	MaterialResin Material = "RESIN"
	MaterialNylon Material = "NYLON"
)

// Valid reports whether the material is a known type.
func (m Material) Valid() bool {
	switch m {
	case MaterialPLA, MaterialABS, MaterialPETG, MaterialTPU, MaterialResin, MaterialNylon:
		return true
	}
	return false
}

// PrintJob represents one print submission stored in the print_jobs table.
type PrintJob struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	FileName        string     `db:"file_name" json:"file_name"`
	FileSize        int64      `db:"file_size" json:"file_size"`
	FilePath        string     `db:"file_path" json:"-"`
	Material        Material   `db:"material" json:"material"`
	MaterialWeightG float64    `db:"material_weight_g" json:"material_weight_g"`
	EstimatedHours  float64    `db:"estimated_hours" json:"estimated_hours"`
	ActualHours     *float64   `db:"actual_hours" json:"actual_hours,omitempty"`
	LayerHeightMM   float64    `db:"layer_height_mm" json:"layer_height_mm"`
	InfillPercent   int        `db:"infill_percent" json:"infill_percent"`
	Supports        bool       `db:"supports" json:"supports"`
	Priority        int        `db:"priority" json:"priority"`
	Status          JobStatus  `db:"status" json:"status"`
	EstimatedCost   *float64   `db:"estimated_cost" json:"estimated_cost,omitempty"`
	ActualCost      *float64   `db:"actual_cost" json:"actual_cost,omitempty"`
	PrinterID       *string    `db:"printer_id" json:"printer_id,omitempty"`
	Notes           string     `db:"notes" json:"notes,omitempty"`
	AdminNotes      string     `db:"admin_notes" json:"admin_notes,omitempty"`
	RejectionReason string     `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ErrorMessage    string     `db:"error_message" json:"error_message,omitempty"`
	Paid            bool       `db:"paid" json:"paid"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	AssignedAt      *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// Active reports whether the job still occupies one of the user's concurrency slots.
func (j *PrintJob) Active() bool {
	return !j.Status.Terminal()
}

// JobDetail enriches PrintJob with owner and printer context plus its event trail.
type JobDetail struct {
	PrintJob
	UserName    string     `db:"user_name" json:"user_name"`
	UserEmail   string     `db:"user_email" json:"user_email"`
	PrinterName *string    `db:"printer_name" json:"printer_name,omitempty"`
	Events      []JobEvent `db:"-" json:"events,omitempty"`
}

// JobFilter provides filters for listing print jobs.
type JobFilter struct {
	UserID    string
	PrinterID string
	Status    JobStatus
	Page      int
	PageSize  int
}

// JobEvent is one audit record of a lifecycle transition.
type JobEvent struct {
	ID         string    `db:"id" json:"id"`
	JobID      string    `db:"job_id" json:"job_id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	FromStatus JobStatus `db:"from_status" json:"from_status"`
	ToStatus   JobStatus `db:"to_status" json:"to_status"`
	Note       string    `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
