// Package compile renders the monthly report document: header, executive
// summary, per-source charts and the metrics table, as an A4 PDF.
package compile

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metria/report-cli/internal/model"
)

// Request carries everything the compiler needs to produce one document.
type Request struct {
	ClientName string
	Period     string // YYYY-MM label
	Processed  *model.ProcessedMetrics
	AIAnalysis string
}

// Compiler renders report PDFs.
type Compiler interface {
	Compile(req Request) ([]byte, error)
}

// PDFCompiler implements Compiler with fpdf.
type PDFCompiler struct{}

// New creates a PDFCompiler.
func New() *PDFCompiler {
	return &PDFCompiler{}
}

// Compile produces the PDF bytes. Charts are best effort: a chart that fails
// to render is logged and skipped, the document still ships.
func (c *PDFCompiler) Compile(req Request) ([]byte, error) {
	if req.Processed == nil {
		return nil, eris.New("compile: nil processed metrics")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(fmt.Sprintf("Relatório de Marketing - %s - %s", req.ClientName, req.Period)), true)
	pdf.AddPage()

	writeHeader(pdf, tr, req.ClientName, req.Period)
	writeExecutiveSummary(pdf, tr, req.AIAnalysis)
	writeCharts(pdf, req.Processed)

	rows := buildRows(req.Processed)
	if len(rows) > 0 {
		writeTable(pdf, tr, "Métricas do Mês", [3]string{"Métrica", "Valor", "Variação"}, rows, true)
	}
	if sc := req.Processed.SearchConsole; sc != nil && len(sc.Queries) > 0 {
		writeTable(pdf, tr, "Principais Buscas", [3]string{"Consulta", "Cliques", ""}, queryRows(sc.Queries), false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, eris.Wrap(err, "compile: write pdf")
	}
	return buf.Bytes(), nil
}

func writeHeader(pdf *fpdf.Fpdf, tr func(string) string, clientName, period string) {
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(0, 12, tr("Relatório de Marketing"), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(107, 114, 128)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s · %s", clientName, period)), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func writeExecutiveSummary(pdf *fpdf.Fpdf, tr func(string) string, analysis string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(0, 9, tr("Análise Executiva"), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(55, 65, 81)
	for _, para := range strings.Split(analysis, "\n\n") {
		line := sanitizeLine(para)
		if line == "" {
			continue
		}
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
		pdf.Ln(2)
	}
	pdf.Ln(2)
}

func writeCharts(pdf *fpdf.Fpdf, p *model.ProcessedMetrics) {
	for _, nc := range sectionCharts(p) {
		png, err := renderBarChart(nc.title, nc.values)
		if err != nil {
			zap.L().Warn("chart render failed, skipping", zap.String("chart", nc.name), zap.Error(err))
			continue
		}
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(nc.name, opts, bytes.NewReader(png))
		if pdf.GetY() > 200 {
			pdf.AddPage()
		}
		pdf.ImageOptions(nc.name, 15, pdf.GetY(), 120, 60, true, opts, 0, "")
		pdf.Ln(4)
	}
}

func writeTable(pdf *fpdf.Fpdf, tr func(string) string, title string, headers [3]string, rows []Row, withVariation bool) {
	if pdf.GetY() > 230 {
		pdf.AddPage()
	}
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(0, 9, tr(title), "", 1, "L", false, 0, "")

	labelW, valueW, varW := 90.0, 45.0, 45.0

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(243, 244, 246)
	pdf.CellFormat(labelW, 7, tr(headers[0]), "1", 0, "L", true, 0, "")
	pdf.CellFormat(valueW, 7, tr(headers[1]), "1", 0, "R", true, 0, "")
	if withVariation {
		pdf.CellFormat(varW, 7, tr(headers[2]), "1", 0, "R", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(55, 65, 81)
	for _, row := range rows {
		pdf.CellFormat(labelW, 7, tr(row.Label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 7, tr(row.Value), "1", 0, "R", false, 0, "")
		if withVariation {
			pdf.CellFormat(varW, 7, formatVariation(row.Variation), "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}
