// Package report renders completed analyses as downloadable PDF reports.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/clauseguard/clauseguard/internal/model"
)

// Render produces the analysis report PDF for a completed job.
func Render(fileName string, summary []string, clauses []model.RiskClause) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(0, 10, "Contract Analysis Report", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 11)
	doc.CellFormat(0, 8, "File: "+fileName, "", 1, "L", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 11)
	for _, bullet := range summary {
		doc.MultiCell(0, 6, "- "+bullet, "", "L", false)
		doc.Ln(1)
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(0, 8, "Risk Clauses", "", 1, "L", false, 0, "")
	if len(clauses) == 0 {
		doc.SetFont("Helvetica", "I", 11)
		doc.CellFormat(0, 6, "No risky clauses identified.", "", 1, "L", false, 0, "")
	}
	for i, clause := range clauses {
		doc.SetFont("Helvetica", "B", 11)
		heading := fmt.Sprintf("%d. [%s]", i+1, strings.ToUpper(string(clause.RiskLevel)))
		if clause.Section != "" {
			heading += " " + clause.Section
		}
		doc.CellFormat(0, 7, heading, "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "I", 10)
		doc.MultiCell(0, 5, clause.Text, "", "L", false)
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, 5, clause.Explanation, "", "L", false)
		doc.Ln(3)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}
