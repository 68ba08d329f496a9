package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/printlab/printlab-api/internal/models"
)

// ReceiptRenderer produces PDF receipts for completed print jobs.
type ReceiptRenderer struct {
	labName string
}

// NewReceiptRenderer constructs a renderer with the lab name used in headers.
func NewReceiptRenderer(labName string) *ReceiptRenderer {
	if labName == "" {
		labName = "3D Printing Lab"
	}
	return &ReceiptRenderer{labName: labName}
}

// Render creates a single-page receipt for the given job.
func (r *ReceiptRenderer) Render(job *models.JobDetail) ([]byte, error) {
	if job == nil {
		return nil, fmt.Errorf("receipt requires a job")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, r.labName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "Print Job Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Job ID", job.ID},
		{"User", fmt.Sprintf("%s (%s)", job.UserName, job.UserEmail)},
		{"File", job.FileName},
		{"Material", string(job.Material)},
		{"Weight", fmt.Sprintf("%.1f g", job.MaterialWeightG)},
		{"Status", string(job.Status)},
	}
	if job.PrinterName != nil {
		rows = append(rows, [2]string{"Printer", *job.PrinterName})
	}
	if job.ActualHours != nil {
		rows = append(rows, [2]string{"Print time", fmt.Sprintf("%.2f h", *job.ActualHours)})
	} else {
		rows = append(rows, [2]string{"Estimated time", fmt.Sprintf("%.2f h", job.EstimatedHours)})
	}
	if job.CompletedAt != nil {
		rows = append(rows, [2]string{"Completed", job.CompletedAt.Format(time.RFC1123)})
	}

	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(130, 8, row[1], "1", 1, "", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 12)
	cost := 0.0
	switch {
	case job.ActualCost != nil:
		cost = *job.ActualCost
	case job.EstimatedCost != nil:
		cost = *job.EstimatedCost
	}
	pdf.CellFormat(0, 10, fmt.Sprintf("Total charged: $%.2f", cost), "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
