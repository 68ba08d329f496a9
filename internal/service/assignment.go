package service

import (
	"sort"

	"github.com/printlab/printlab-api/internal/models"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
)

// AssignmentSelector ranks and validates printers for approved jobs. It is a
// pure query/validate component; committing the slot reservation is the
// lifecycle engine's job.
type AssignmentSelector struct{}

// Rank orders candidate printers for wear balancing: least loaded first,
// least used machine breaking ties.
func (AssignmentSelector) Rank(printers []models.Printer) []models.Printer {
	ranked := make([]models.Printer, len(printers))
	copy(ranked, printers)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CurrentJobCount != ranked[j].CurrentJobCount {
			return ranked[i].CurrentJobCount < ranked[j].CurrentJobCount
		}
		return ranked[i].TotalPrintHours < ranked[j].TotalPrintHours
	})
	return ranked
}

// Validate checks an explicitly chosen printer against the job's needs.
// Used for admin-forced manual assignment; an unsuitable choice is rejected
// rather than forced.
func (AssignmentSelector) Validate(printer *models.Printer, job *models.PrintJob) error {
	if printer.Status != models.PrinterStatusAvailable {
		return appErrors.Clone(appErrors.ErrIncompatiblePrinter, "printer is not available")
	}
	if !printer.HasFreeSlot() {
		return appErrors.Clone(appErrors.ErrIncompatiblePrinter, "printer has no free slot")
	}
	if !printer.SupportsMaterial(job.Material) {
		return appErrors.Clone(appErrors.ErrIncompatiblePrinter, "printer does not support job material")
	}
	return nil
}
