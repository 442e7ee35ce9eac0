package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const utf8Family = "body"

// PDFExporter renders tabular datasets and certificates.
// With a TTF font path it embeds that font so non-Latin text renders; otherwise it uses core Arial.
type PDFExporter struct {
	fontPath string
}

// NewPDFExporter constructs a PDF exporter. fontPath may be empty.
func NewPDFExporter(fontPath string) *PDFExporter {
	return &PDFExporter{fontPath: fontPath}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf, family, tr := e.newDocument("L")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont(family, "", 14)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pageWidth, _ := pdf.GetPageSize()
	colWidth := (pageWidth - 20) / float64(len(data.Headers))

	pdf.SetFont(family, "", 10)
	pdf.SetFillColor(240, 240, 240)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, tr(row[header]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

// CertificateContent holds the printed fields of a completion certificate.
type CertificateContent struct {
	SerialNumber   string
	StudentName    string
	CourseTitle    string
	Grade          string
	CompletionDate time.Time
	IssuedAt       time.Time
}

// RenderCertificate draws a single-page landscape completion certificate.
func (e *PDFExporter) RenderCertificate(content CertificateContent) ([]byte, error) {
	if content.StudentName == "" || content.CourseTitle == "" {
		return nil, fmt.Errorf("certificate requires student name and course title")
	}
	pdf, family, tr := e.newDocument("L")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pageWidth, pageHeight := pdf.GetPageSize()
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, pageWidth-20, pageHeight-20, "D")
	pdf.SetLineWidth(0.3)
	pdf.Rect(14, 14, pageWidth-28, pageHeight-28, "D")

	pdf.SetY(40)
	pdf.SetFont(family, "", 30)
	pdf.CellFormat(0, 16, tr("Certificate of Completion"), "", 1, "C", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont(family, "", 14)
	pdf.CellFormat(0, 8, tr("This certifies that"), "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont(family, "", 24)
	pdf.CellFormat(0, 12, tr(content.StudentName), "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont(family, "", 14)
	pdf.CellFormat(0, 8, tr("has successfully completed"), "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont(family, "", 20)
	pdf.CellFormat(0, 10, tr(content.CourseTitle), "", 1, "C", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont(family, "", 12)
	if content.Grade != "" {
		pdf.CellFormat(0, 7, tr("Grade: "+content.Grade), "", 1, "C", false, 0, "")
	}
	if !content.CompletionDate.IsZero() {
		pdf.CellFormat(0, 7, tr("Completed on "+content.CompletionDate.Format("2006-01-02")), "", 1, "C", false, 0, "")
	}

	pdf.SetY(pageHeight - 35)
	pdf.SetFont(family, "", 9)
	pdf.CellFormat(0, 5, tr("Serial No. "+content.SerialNumber), "", 1, "L", false, 0, "")
	if !content.IssuedAt.IsZero() {
		pdf.CellFormat(0, 5, tr("Issued "+content.IssuedAt.Format("2006-01-02")), "", 1, "L", false, 0, "")
	}

	return output(pdf)
}

func (e *PDFExporter) newDocument(orientation string) (*gofpdf.Fpdf, string, func(string) string) {
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	if e.fontPath != "" {
		pdf.AddUTF8Font(utf8Family, "", e.fontPath)
		if pdf.Ok() {
			return pdf, utf8Family, func(s string) string { return s }
		}
		// Fall back to a fresh document so the font error does not poison output.
		pdf = gofpdf.New(orientation, "mm", "A4", "")
	}
	return pdf, "Arial", pdf.UnicodeTranslatorFromDescriptor("")
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
