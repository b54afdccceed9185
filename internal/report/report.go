// Package report renders the backend's report summary as text and as a PDF.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-pdf/fpdf"

	"asci-dashboard/internal/api"
)

const (
	Title           = "Amazon Supply Chain Intelligence - Risk Report"
	DefaultFilename = "delivery-risk-report.pdf"

	marginTop    = 15.0
	pageBreakY   = 270.0
	headingX     = 14.0
	itemX        = 18.0
	lineHeight   = 6.0
	headingSpace = 7.0
	sectionGap   = 4.0
)

// Line is one entry of a report section.
type Line struct {
	Label string
	Value string
}

// Section is a titled list of lines.
type Section struct {
	Heading string
	Lines   []Line
}

// Build lays out the summary in the order it is printed.
func Build(s api.ReportSummary) []Section {
	risk := Section{Heading: "Risk Summary"}
	for _, key := range api.OrderedLabels(s.RiskSummary) {
		risk.Lines = append(risk.Lines, Line{Label: key, Value: humanize.Comma(int64(s.RiskSummary[key]))})
	}

	model := Section{Heading: "Model Summary", Lines: []Line{
		{Label: "Name", Value: s.ModelSummary.Name},
		{Label: "Algorithm", Value: s.ModelSummary.Algorithm},
		{Label: "Classes", Value: strings.Join(s.ModelSummary.Classes, ", ")},
	}}

	impact := Section{Heading: "Feature Impact"}
	for _, fi := range s.FeatureImpact {
		impact.Lines = append(impact.Lines, Line{Label: fi.Feature, Value: fmt.Sprintf("%.4f", fi.Importance)})
	}

	dist := Section{Heading: "Class Distribution"}
	for _, key := range api.OrderedLabels(s.ClassDistribution.BeforeSMOTE) {
		dist.Lines = append(dist.Lines, Line{Label: "Before SMOTE - " + key, Value: humanize.Comma(int64(s.ClassDistribution.BeforeSMOTE[key]))})
	}
	for _, key := range api.OrderedLabels(s.ClassDistribution.AfterSMOTE) {
		dist.Lines = append(dist.Lines, Line{Label: "After SMOTE - " + key, Value: humanize.Comma(int64(s.ClassDistribution.AfterSMOTE[key]))})
	}

	return []Section{risk, model, impact, dist}
}

// WriteText prints the report as plain text.
func WriteText(w io.Writer, s api.ReportSummary) error {
	var b strings.Builder
	b.WriteString(Title + "\n")
	for _, sec := range Build(s) {
		fmt.Fprintf(&b, "\n%s:\n", sec.Heading)
		for _, l := range sec.Lines {
			fmt.Fprintf(&b, "  - %s: %s\n", l.Label, l.Value)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WritePDF writes an A4 PDF of the report to w.
func WritePDF(w io.Writer, s api.ReportSummary) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(Title, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	y := marginTop
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(headingX, y, Title)
	y += 10

	for i, sec := range Build(s) {
		if i > 0 {
			y += sectionGap
		}
		y = breakIfNeeded(pdf, y)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Text(headingX, y, sec.Heading+":")
		y += headingSpace

		pdf.SetFont("Helvetica", "", 12)
		for _, l := range sec.Lines {
			y = breakIfNeeded(pdf, y)
			pdf.Text(itemX, y, fmt.Sprintf("- %s: %s", l.Label, l.Value))
			y += lineHeight
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render report pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write report pdf: %w", err)
	}
	return nil
}

func breakIfNeeded(pdf *fpdf.Fpdf, y float64) float64 {
	if y > pageBreakY {
		pdf.AddPage()
		return marginTop
	}
	return y
}
