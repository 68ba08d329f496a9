package models

import (
	"time"

	"github.com/lib/pq"
)

// PrinterStatus represents the operational state of a printer.
type PrinterStatus string

const (
	PrinterStatusAvailable    PrinterStatus = "AVAILABLE"
	PrinterStatusPrinting     PrinterStatus = "PRINTING"
	PrinterStatusMaintenance  PrinterStatus = "MAINTENANCE"
	PrinterStatusReserved     PrinterStatus = "RESERVED"
	PrinterStatusOutOfService PrinterStatus = "OUT_OF_SERVICE"
)

// Valid reports whether the status belongs to the closed set.
func (s PrinterStatus) Valid() bool {
	switch s {
	case PrinterStatusAvailable, PrinterStatusPrinting, PrinterStatusMaintenance,
		PrinterStatusReserved, PrinterStatusOutOfService:
		return true
	}
	return false
}

// PrinterType identifies the printing technology.
type PrinterType string

const (
	PrinterTypeFDM PrinterType = "FDM"
	PrinterTypeSLA PrinterType = "SLA"
	PrinterTypeSLS PrinterType = "SLS"
	PrinterTypeDLP PrinterType = "DLP"
)

// Valid reports whether the type is a known technology.
func (t PrinterType) Valid() bool {
	switch t {
	case PrinterTypeFDM, PrinterTypeSLA, PrinterTypeSLS, PrinterTypeDLP:
		return true
	}
	return false
}

// Printer represents a lab printer stored in the printers table.
type Printer struct {
	ID                 string         `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	Serial             string         `db:"serial" json:"serial"`
	Brand              string         `db:"brand" json:"brand"`
	Model              string         `db:"model" json:"model"`
	Type               PrinterType    `db:"type" json:"type"`
	SupportedMaterials pq.StringArray `db:"supported_materials" json:"supported_materials"`
	BuildVolumeXMM     float64        `db:"build_volume_x_mm" json:"build_volume_x_mm"`
	BuildVolumeYMM     float64        `db:"build_volume_y_mm" json:"build_volume_y_mm"`
	BuildVolumeZMM     float64        `db:"build_volume_z_mm" json:"build_volume_z_mm"`
	MaxTempC           float64        `db:"max_temp_c" json:"max_temp_c"`
	Status             PrinterStatus  `db:"status" json:"status"`
	CurrentJobCount    int            `db:"current_job_count" json:"current_job_count"`
	MaxJobs            int            `db:"max_jobs" json:"max_jobs"`
	TotalPrintHours    float64        `db:"total_print_hours" json:"total_print_hours"`
	HoursAtMaintenance float64        `db:"hours_at_maintenance" json:"-"`
	HourlyCost         float64        `db:"hourly_cost" json:"hourly_cost"`
	LastMaintenanceAt  *time.Time     `db:"last_maintenance_at" json:"last_maintenance_at,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// SupportsMaterial reports whether the printer can print the given material.
func (p *Printer) SupportsMaterial(m Material) bool {
	for _, supported := range p.SupportedMaterials {
		if Material(supported) == m {
			return true
		}
	}
	return false
}

// HasFreeSlot reports whether the printer can take one more job.
func (p *Printer) HasFreeSlot() bool {
	return p.CurrentJobCount < p.MaxJobs
}

// HoursSinceMaintenance is the print time accumulated since the last service.
func (p *Printer) HoursSinceMaintenance() float64 {
	return p.TotalPrintHours - p.HoursAtMaintenance
}

// PrinterView decorates Printer with the lazily computed maintenance flag.
type PrinterView struct {
	Printer
	NeedsMaintenance bool `json:"needs_maintenance"`
}

// PrinterFilter provides filters for listing printers.
type PrinterFilter struct {
	Status   PrinterStatus
	Material Material
	Page     int
	PageSize int
}
