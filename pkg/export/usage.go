package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/printlab/printlab-api/internal/models"
)

// UsageRenderer produces the per-user usage report PDF.
type UsageRenderer struct {
	labName string
}

// NewUsageRenderer constructs a renderer with the lab name used in headers.
func NewUsageRenderer(labName string) *UsageRenderer {
	if labName == "" {
		labName = "3D Printing Lab"
	}
	return &UsageRenderer{labName: labName}
}

// Render creates the usage report for the given window.
func (r *UsageRenderer) Render(from, to time.Time, rows []models.UsageRow) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, r.labName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("Usage Report %s to %s",
		from.Format("2006-01-02"), to.Format("2006-01-02")), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	widths := []float64{70, 80, 25, 30, 30, 30}
	headers := []string{"User", "Email", "Jobs", "Completed", "Hours", "Spent"}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	var totalSpent float64
	for _, row := range rows {
		pdf.CellFormat(widths[0], 8, row.FullName, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[1], 8, row.Email, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[2], 8, fmt.Sprintf("%d", row.JobsTotal), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 8, fmt.Sprintf("%d", row.JobsCompleted), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 8, fmt.Sprintf("%.2f", row.TotalHours), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 8, fmt.Sprintf("$%.2f", row.TotalSpent), "1", 1, "R", false, 0, "")
		totalSpent += row.TotalSpent
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, fmt.Sprintf("Total charged: $%.2f", totalSpent), "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render usage report: %w", err)
	}
	return buf.Bytes(), nil
}
