package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/stockline/supplier-core/internal/supplier/entity"
)

// Export formats
const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
	FormatXLSX  = "xlsx"
	FormatHTML  = "html"
	FormatJSON  = "json"
)

// Field-group templates
const (
	TemplateDefault     = "default"
	TemplateDetailed    = "detailed"
	TemplatePerformance = "performance"
	TemplateCompliance  = "compliance"
)

// MaxRecords caps how many suppliers a single export fetches.
const MaxRecords = 10000

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Request selects what to export and how. The template picks field groups;
// the include flags add groups on top of it.
type Request struct {
	Filter             entity.ListFilter `json:"filters"`
	Format             string            `json:"format" binding:"required"`
	Template           string            `json:"template"`
	IncludeContacts    bool              `json:"include_contacts"`
	IncludeAddresses   bool              `json:"include_addresses"`
	IncludePerformance bool              `json:"include_performance"`
}

// Result is the rendered artifact.
type Result struct {
	Filename    string `json:"filename"`
	Data        []byte `json:"-"`
	MimeType    string `json:"mime_type"`
	Size        int    `json:"size"`
	RecordCount int    `json:"record_count"`
}

// UnsupportedFormatError is returned for an unknown format string, before any
// row is fetched.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported export format %q", e.Format)
}

// CheckFormat validates a format string up front.
func CheckFormat(format string) error {
	switch format {
	case FormatCSV, FormatExcel, FormatXLSX, FormatHTML, FormatJSON:
		return nil
	default:
		return &UnsupportedFormatError{Format: format}
	}
}

// RiskLevel derives the compliance risk band from the overall rating. Every
// output format goes through this one function.
func RiskLevel(overallRating float64) string {
	switch {
	case overallRating >= 4.0:
		return "Low"
	case overallRating >= 3.0:
		return "Medium"
	default:
		return "High"
	}
}

// Exporter renders supplier sets into the supported formats.
type Exporter struct {
	logger *zap.Logger
}

func NewExporter(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{logger: logger}
}

// Export renders the given suppliers per the request.
func (e *Exporter) Export(suppliers []entity.Supplier, req *Request) (*Result, error) {
	if err := CheckFormat(req.Format); err != nil {
		return nil, err
	}
	if req.Template == "" {
		req.Template = TemplateDefault
	}

	var (
		data []byte
		mime string
		ext  string
		err  error
	)
	switch req.Format {
	case FormatCSV:
		data, err = e.renderCSV(suppliers, req)
		mime, ext = "text/csv", "csv"
	case FormatExcel:
		data, err = e.renderExcelText(suppliers, req)
		mime, ext = "application/vnd.ms-excel", "xls"
	case FormatXLSX:
		data, err = e.renderXLSX(suppliers, req)
		mime, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	case FormatHTML:
		data, err = e.renderHTML(suppliers, req)
		mime, ext = "text/html", "html"
	case FormatJSON:
		data, err = e.renderJSON(suppliers, req)
		mime, ext = "application/json", "json"
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		Filename:    filename(req.Template, ext, time.Now()),
		Data:        data,
		MimeType:    mime,
		Size:        len(data),
		RecordCount: len(suppliers),
	}
	e.logger.Info("export rendered",
		zap.String("format", req.Format),
		zap.String("template", req.Template),
		zap.Int("records", res.RecordCount),
		zap.Int("bytes", res.Size),
	)
	return res, nil
}

// filename embeds the template and a colon-free timestamp so the name is safe
// on every filesystem.
func filename(tmpl, ext string, at time.Time) string {
	return fmt.Sprintf("suppliers_%s_%s.%s", tmpl, at.Format("2006-01-02_15-04-05"), ext)
}

// column pairs a header with its cell extractor, so headers and values can
// never drift out of alignment between formats.
type column struct {
	header string
	value  func(s *entity.Supplier) string
}

// columns assembles the column set for a request: the fixed base group, then
// the conditional groups, with created/updated dates always last.
func columns(req *Request) []column {
	cols := []column{
		{"Name", func(s *entity.Supplier) string { return s.Name }},
		{"Code", func(s *entity.Supplier) string { return s.Code }},
		{"Status", func(s *entity.Supplier) string { return s.Status }},
		{"Tier", func(s *entity.Supplier) string { return s.Tier }},
		{"Category", func(s *entity.Supplier) string { return s.Category }},
		{"Tags", func(s *entity.Supplier) string { return strings.Join(s.Tags, "; ") }},
	}

	if req.Template == TemplateDetailed || req.Template == TemplateCompliance {
		cols = append(cols,
			column{"Legal Name", func(s *entity.Supplier) string { return s.Business.LegalName }},
			column{"Trading Name", func(s *entity.Supplier) string { return s.Business.TradingName }},
			column{"Tax ID", func(s *entity.Supplier) string { return s.Business.TaxID }},
			column{"Registration Number", func(s *entity.Supplier) string { return s.Business.RegistrationNumber }},
			column{"Website", func(s *entity.Supplier) string { return s.Business.Website }},
			column{"Founded Year", func(s *entity.Supplier) string { return intStr(s.Business.FoundedYear) }},
			column{"Employee Count", func(s *entity.Supplier) string { return intStr(s.Business.EmployeeCount) }},
			column{"Annual Revenue", func(s *entity.Supplier) string { return floatStr(s.Business.AnnualRevenue) }},
			column{"Currency", func(s *entity.Supplier) string { return s.Business.Currency }},
		)
	}

	if req.IncludeContacts || req.Template == TemplateDetailed {
		cols = append(cols,
			column{"Primary Contact", func(s *entity.Supplier) string { return contactField(s, func(c *entity.Contact) string { return c.Name }) }},
			column{"Contact Email", func(s *entity.Supplier) string { return contactField(s, func(c *entity.Contact) string { return c.Email }) }},
			column{"Contact Phone", func(s *entity.Supplier) string { return contactField(s, func(c *entity.Contact) string { return c.Phone }) }},
		)
	}

	if req.IncludeAddresses || req.Template == TemplateDetailed {
		cols = append(cols,
			column{"Address", func(s *entity.Supplier) string { return addressField(s, func(a *entity.Address) string { return a.Line1 }) }},
			column{"City", func(s *entity.Supplier) string { return addressField(s, func(a *entity.Address) string { return a.City }) }},
			column{"State", func(s *entity.Supplier) string { return addressField(s, func(a *entity.Address) string { return a.State }) }},
			column{"Postal Code", func(s *entity.Supplier) string { return addressField(s, func(a *entity.Address) string { return a.PostalCode }) }},
			column{"Country", func(s *entity.Supplier) string { return addressField(s, func(a *entity.Address) string { return a.Country }) }},
		)
	}

	if req.IncludePerformance || req.Template == TemplatePerformance {
		cols = append(cols,
			column{"Overall Rating", func(s *entity.Supplier) string { return perfField(s, func(p *entity.Performance) float64 { return p.OverallRating }) }},
			column{"Quality Rating", func(s *entity.Supplier) string { return perfField(s, func(p *entity.Performance) float64 { return p.QualityRating }) }},
			column{"Delivery Rating", func(s *entity.Supplier) string { return perfField(s, func(p *entity.Performance) float64 { return p.DeliveryRating }) }},
			column{"Service Rating", func(s *entity.Supplier) string { return perfField(s, func(p *entity.Performance) float64 { return p.ServiceRating }) }},
			column{"Price Rating", func(s *entity.Supplier) string { return perfField(s, func(p *entity.Performance) float64 { return p.PriceRating }) }},
			column{"On-Time Delivery Rate", func(s *entity.Supplier) string { return perfField(s, func(p *entity.Performance) float64 { return p.OnTimeDeliveryRate }) }},
			column{"Quality Acceptance Rate", func(s *entity.Supplier) string { return perfField(s, func(p *entity.Performance) float64 { return p.QualityAcceptanceRate }) }},
			column{"Defect Rate", func(s *entity.Supplier) string { return perfField(s, func(p *entity.Performance) float64 { return p.DefectRate }) }},
		)
	}

	if req.Template == TemplateCompliance {
		cols = append(cols,
			column{"Compliance Status", func(s *entity.Supplier) string { return s.Status }},
			column{"Last Audit Date", func(s *entity.Supplier) string { return "" }},
			column{"Certifications", func(s *entity.Supplier) string { return "" }},
			column{"Risk Level", func(s *entity.Supplier) string { return RiskLevel(overallRating(s)) }},
		)
	}

	cols = append(cols,
		column{"Created At", func(s *entity.Supplier) string { return s.CreatedAt.Format("2006-01-02") }},
		column{"Updated At", func(s *entity.Supplier) string { return s.UpdatedAt.Format("2006-01-02") }},
	)
	return cols
}

func overallRating(s *entity.Supplier) float64 {
	if s.Performance == nil {
		return 0
	}
	return s.Performance.OverallRating
}

func contactField(s *entity.Supplier, get func(*entity.Contact) string) string {
	if c := s.PrimaryContact(); c != nil {
		return get(c)
	}
	return ""
}

func addressField(s *entity.Supplier, get func(*entity.Address) string) string {
	if a := s.PrimaryAddress(); a != nil {
		return get(a)
	}
	return ""
}

func perfField(s *entity.Supplier, get func(*entity.Performance) float64) string {
	if s.Performance == nil {
		return "0"
	}
	return strconv.FormatFloat(get(s.Performance), 'f', -1, 64)
}

func intStr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatStr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func (e *Exporter) renderCSV(suppliers []entity.Supplier, req *Request) ([]byte, error) {
	cols := columns(req)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.header
	}
	if err := w.Write(headers); err != nil {
		return nil, err
	}

	row := make([]string, len(cols))
	for i := range suppliers {
		for j, c := range cols {
			row[j] = c.value(&suppliers[i])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// renderExcelText produces tab-separated text with a UTF-8 BOM so spreadsheet
// tools auto-detect the encoding.
func (e *Exporter) renderExcelText(suppliers []entity.Supplier, req *Request) ([]byte, error) {
	cols := columns(req)

	var buf bytes.Buffer
	buf.Write(utf8BOM)

	clean := func(s string) string {
		s = strings.ReplaceAll(s, "\t", " ")
		s = strings.ReplaceAll(s, "\n", " ")
		return strings.ReplaceAll(s, "\r", " ")
	}

	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = clean(c.header)
	}
	buf.WriteString(strings.Join(cells, "\t"))
	buf.WriteByte('\n')

	for i := range suppliers {
		for j, c := range cols {
			cells[j] = clean(c.value(&suppliers[i]))
		}
		buf.WriteString(strings.Join(cells, "\t"))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (e *Exporter) renderXLSX(suppliers []entity.Supplier, req *Request) ([]byte, error) {
	cols := columns(req)

	f := excelize.NewFile()
	sheet := "Suppliers"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, c := range cols {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, c.header)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx := range suppliers {
		row := rowIdx + 2
		for j, c := range cols {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), c.value(&suppliers[rowIdx]))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var htmlReport = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Supplier Report</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
th { background: #d9e1f2; }
.meta { color: #555; margin-bottom: 1em; }
.status-active { color: #1a7f37; }
.status-inactive, .status-suspended { color: #b42318; }
.status-pending { color: #b54708; }
.tier-strategic { font-weight: bold; }
</style>
</head>
<body>
<h1>Supplier Report</h1>
<div class="meta">
Generated: {{.GeneratedAt}}<br>
Records: {{.RecordCount}}<br>
Template: {{.Template}}
</div>
<table>
<tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr class="status-{{.Status}} tier-{{.Tier}}">{{range .Cells}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
</body>
</html>
`))

type htmlRow struct {
	Status string
	Tier   string
	Cells  []string
}

func (e *Exporter) renderHTML(suppliers []entity.Supplier, req *Request) ([]byte, error) {
	cols := columns(req)

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.header
	}

	rows := make([]htmlRow, len(suppliers))
	for i := range suppliers {
		cells := make([]string, len(cols))
		for j, c := range cols {
			cells[j] = c.value(&suppliers[i])
		}
		rows[i] = htmlRow{Status: suppliers[i].Status, Tier: suppliers[i].Tier, Cells: cells}
	}

	var buf bytes.Buffer
	err := htmlReport.Execute(&buf, map[string]interface{}{
		"GeneratedAt": time.Now().Format(time.RFC3339),
		"RecordCount": len(suppliers),
		"Template":    req.Template,
		"Headers":     headers,
		"Rows":        rows,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Exporter) renderJSON(suppliers []entity.Supplier, req *Request) ([]byte, error) {
	items := make([]map[string]interface{}, len(suppliers))
	for i := range suppliers {
		items[i] = jsonSupplier(&suppliers[i], req)
	}

	envelope := map[string]interface{}{
		"export_date":  time.Now().Format(time.RFC3339),
		"template":     req.Template,
		"record_count": len(suppliers),
		"filters":      req.Filter,
		"suppliers":    items,
	}
	return json.MarshalIndent(envelope, "", "  ")
}

// jsonSupplier mirrors the CSV column groups: the same template and include
// flags decide which groups appear, there is no fixed full dump.
func jsonSupplier(s *entity.Supplier, req *Request) map[string]interface{} {
	item := map[string]interface{}{
		"name":     s.Name,
		"code":     s.Code,
		"status":   s.Status,
		"tier":     s.Tier,
		"category": s.Category,
		"tags":     s.Tags,
	}

	if req.Template == TemplateDetailed || req.Template == TemplateCompliance {
		item["business_info"] = s.Business
	}
	if req.IncludeContacts || req.Template == TemplateDetailed {
		item["contacts"] = s.Contacts
	}
	if req.IncludeAddresses || req.Template == TemplateDetailed {
		item["addresses"] = s.Addresses
	}
	if req.IncludePerformance || req.Template == TemplatePerformance {
		perf := s.Performance
		if perf == nil {
			perf = &entity.Performance{SupplierID: s.ID}
		}
		item["performance"] = perf
	}
	if req.Template == TemplateCompliance {
		item["compliance"] = map[string]interface{}{
			"status":         s.Status,
			"last_audit":     nil,
			"certifications": []string{},
			"risk_level":     RiskLevel(overallRating(s)),
		}
	}

	item["created_at"] = s.CreatedAt
	item["updated_at"] = s.UpdatedAt
	return item
}
