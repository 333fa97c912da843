package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/stockline/supplier-core/internal/supplier/entity"
)

func sampleSuppliers() []entity.Supplier {
	year := 1998
	return []entity.Supplier{
		{
			ID:       "sup-001",
			Name:     "Acme Components, Inc.",
			Code:     "ACM001",
			Status:   "active",
			Tier:     "strategic",
			Category: "electronics",
			Tags:     []string{"iso9001", "rohs"},
			Business: entity.BusinessInfo{
				LegalName:   "Acme Components GmbH",
				TaxID:       "DE-123456789",
				FoundedYear: &year,
			},
			Contacts: []entity.Contact{
				{Name: "Sam Okafor", Email: "sam@acme.example.com", Phone: "+49 30 555 0100", IsPrimary: true},
			},
			Addresses: []entity.Address{
				{Line1: "Hauptstr. 1", City: "Berlin", Country: "DE", IsPrimary: true},
			},
			Performance: &entity.Performance{
				SupplierID:    "sup-001",
				OverallRating: 4.2,
			},
			CreatedAt: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:       "sup-002",
			Name:     "Baltic Metals",
			Code:     "BAL001",
			Status:   "pending",
			Tier:     "approved",
			Category: "raw-materials",
			Performance: &entity.Performance{
				SupplierID:    "sup-002",
				OverallRating: 2.1,
			},
			CreatedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

// TestExportCSVRoundTrip renders CSV and parses it back, checking the header
// row and that a name containing a comma survives quoting.
func TestExportCSVRoundTrip(t *testing.T) {
	e := NewExporter(zap.NewNop())
	res, err := e.Export(sampleSuppliers(), &Request{Format: FormatCSV})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if res.RecordCount != 2 {
		t.Fatalf("expected 2 records, got %d", res.RecordCount)
	}
	if res.MimeType != "text/csv" {
		t.Fatalf("unexpected mime type %q", res.MimeType)
	}

	rows, err := csv.NewReader(bytes.NewReader(res.Data)).ReadAll()
	if err != nil {
		t.Fatalf("rendered CSV does not parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Name" || rows[0][1] != "Code" {
		t.Fatalf("unexpected header row: %v", rows[0])
	}
	if rows[1][0] != "Acme Components, Inc." {
		t.Fatalf("comma in name must survive quoting, got %q", rows[1][0])
	}
	// Every row matches the header width.
	for i, r := range rows {
		if len(r) != len(rows[0]) {
			t.Fatalf("row %d has %d cells, header has %d", i, len(r), len(rows[0]))
		}
	}
}

// TestExportDefaultOmitsBusinessColumns verifies the default template stays at
// the base column group.
func TestExportDefaultOmitsBusinessColumns(t *testing.T) {
	e := NewExporter(nil)
	res, err := e.Export(sampleSuppliers(), &Request{Format: FormatCSV})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	header := strings.SplitN(string(res.Data), "\n", 2)[0]
	if strings.Contains(header, "Tax ID") || strings.Contains(header, "Overall Rating") {
		t.Fatalf("default template must not carry detailed/performance columns: %s", header)
	}
	if !strings.Contains(header, "Created At") || !strings.Contains(header, "Updated At") {
		t.Fatalf("date columns must always be present: %s", header)
	}
}

// TestExportTemplateGating checks the detailed and performance templates add
// their column groups.
func TestExportTemplateGating(t *testing.T) {
	e := NewExporter(nil)

	res, err := e.Export(sampleSuppliers(), &Request{Format: FormatCSV, Template: TemplateDetailed})
	if err != nil {
		t.Fatalf("detailed export failed: %v", err)
	}
	header := strings.SplitN(string(res.Data), "\n", 2)[0]
	for _, want := range []string{"Legal Name", "Tax ID", "Primary Contact", "Address"} {
		if !strings.Contains(header, want) {
			t.Fatalf("detailed header missing %q: %s", want, header)
		}
	}

	res, err = e.Export(sampleSuppliers(), &Request{Format: FormatCSV, Template: TemplatePerformance})
	if err != nil {
		t.Fatalf("performance export failed: %v", err)
	}
	header = strings.SplitN(string(res.Data), "\n", 2)[0]
	if !strings.Contains(header, "Overall Rating") || !strings.Contains(header, "On-Time Delivery Rate") {
		t.Fatalf("performance header missing rating columns: %s", header)
	}
	if strings.Contains(header, "Legal Name") {
		t.Fatalf("performance template must not carry business columns: %s", header)
	}
}

// TestExportRiskLevelConsistency verifies CSV and JSON derive the identical
// risk band for the same supplier.
func TestExportRiskLevelConsistency(t *testing.T) {
	e := NewExporter(nil)
	suppliers := sampleSuppliers()

	csvRes, err := e.Export(suppliers, &Request{Format: FormatCSV, Template: TemplateCompliance})
	if err != nil {
		t.Fatalf("csv export failed: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(csvRes.Data)).ReadAll()
	if err != nil {
		t.Fatalf("csv parse failed: %v", err)
	}
	riskIdx := -1
	for i, h := range rows[0] {
		if h == "Risk Level" {
			riskIdx = i
		}
	}
	if riskIdx < 0 {
		t.Fatalf("compliance CSV missing Risk Level column: %v", rows[0])
	}

	jsonRes, err := e.Export(suppliers, &Request{Format: FormatJSON, Template: TemplateCompliance})
	if err != nil {
		t.Fatalf("json export failed: %v", err)
	}
	var envelope struct {
		Suppliers []struct {
			Code       string `json:"code"`
			Compliance struct {
				RiskLevel string `json:"risk_level"`
			} `json:"compliance"`
		} `json:"suppliers"`
	}
	if err := json.Unmarshal(jsonRes.Data, &envelope); err != nil {
		t.Fatalf("json parse failed: %v", err)
	}

	for i, s := range envelope.Suppliers {
		if got := rows[i+1][riskIdx]; got != s.Compliance.RiskLevel {
			t.Fatalf("risk level diverges for %s: csv=%q json=%q", s.Code, got, s.Compliance.RiskLevel)
		}
	}
	// Rating 4.2 lands in Low, 2.1 in High.
	if envelope.Suppliers[0].Compliance.RiskLevel != "Low" || envelope.Suppliers[1].Compliance.RiskLevel != "High" {
		t.Fatalf("unexpected risk bands: %+v", envelope.Suppliers)
	}
}

func TestRiskLevelBands(t *testing.T) {
	cases := []struct {
		rating float64
		want   string
	}{
		{4.5, "Low"},
		{4.0, "Low"},
		{3.9, "Medium"},
		{3.0, "Medium"},
		{2.9, "High"},
		{0, "High"},
	}
	for _, tc := range cases {
		if got := RiskLevel(tc.rating); got != tc.want {
			t.Errorf("RiskLevel(%v) = %q, want %q", tc.rating, got, tc.want)
		}
	}
}

// TestExportExcelTextBOM verifies the legacy excel format starts with a UTF-8
// BOM and uses tabs.
func TestExportExcelTextBOM(t *testing.T) {
	e := NewExporter(nil)
	res, err := e.Export(sampleSuppliers(), &Request{Format: FormatExcel})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !bytes.HasPrefix(res.Data, utf8BOM) {
		t.Fatal("excel text output must start with a UTF-8 BOM")
	}
	lines := strings.Split(strings.TrimRight(string(res.Data[len(utf8BOM):]), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "\t") {
		t.Fatal("expected tab-separated header")
	}
	if !strings.HasSuffix(res.Filename, ".xls") {
		t.Fatalf("expected .xls filename, got %q", res.Filename)
	}
}

// TestExportUnsupportedFormat verifies the fast-fail path: no rendering, a
// typed error.
func TestExportUnsupportedFormat(t *testing.T) {
	e := NewExporter(nil)
	_, err := e.Export(sampleSuppliers(), &Request{Format: "pdf"})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected UnsupportedFormatError, got %T", err)
	}
	if ufe.Format != "pdf" {
		t.Fatalf("error should carry the offending format, got %q", ufe.Format)
	}
}

// TestExportXLSX sanity-checks the xlsx artifact is a zip container with the
// right filename and mime type.
func TestExportXLSX(t *testing.T) {
	e := NewExporter(nil)
	res, err := e.Export(sampleSuppliers(), &Request{Format: FormatXLSX})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !bytes.HasPrefix(res.Data, []byte("PK")) {
		t.Fatal("xlsx output must be a zip container")
	}
	if !strings.HasSuffix(res.Filename, ".xlsx") {
		t.Fatalf("expected .xlsx filename, got %q", res.Filename)
	}
}

// TestExportHTML checks the report carries the status/tier row classes used by
// the stylesheet.
func TestExportHTML(t *testing.T) {
	e := NewExporter(nil)
	res, err := e.Export(sampleSuppliers(), &Request{Format: FormatHTML})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	body := string(res.Data)
	if !strings.Contains(body, `class="status-active tier-strategic"`) {
		t.Fatalf("expected status/tier row classes in report:\n%s", body)
	}
	if !strings.Contains(body, "Records: 2") {
		t.Fatal("expected record count in report meta block")
	}
}

// TestExportJSONEnvelope checks the JSON envelope shape and that the default
// template omits optional groups.
func TestExportJSONEnvelope(t *testing.T) {
	e := NewExporter(nil)
	res, err := e.Export(sampleSuppliers(), &Request{Format: FormatJSON})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(res.Data, &envelope); err != nil {
		t.Fatalf("json parse failed: %v", err)
	}
	if envelope["record_count"].(float64) != 2 {
		t.Fatalf("expected record_count 2, got %v", envelope["record_count"])
	}
	if envelope["template"] != TemplateDefault {
		t.Fatalf("expected default template in envelope, got %v", envelope["template"])
	}

	items := envelope["suppliers"].([]interface{})
	first := items[0].(map[string]interface{})
	if _, ok := first["business_info"]; ok {
		t.Fatal("default template must omit business_info")
	}
	if _, ok := first["performance"]; ok {
		t.Fatal("default template must omit performance")
	}
}

func TestExportFilename(t *testing.T) {
	at := time.Date(2026, 8, 30, 14, 5, 9, 0, time.UTC)
	got := filename(TemplateDetailed, "csv", at)
	want := "suppliers_detailed_2026-08-30_14-05-09.csv"
	if got != want {
		t.Fatalf("filename = %q, want %q", got, want)
	}
	if strings.ContainsAny(got, ": ") {
		t.Fatalf("filename must be filesystem safe, got %q", got)
	}
}
