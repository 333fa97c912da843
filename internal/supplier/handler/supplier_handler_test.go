package handler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stockline/supplier-core/internal/supplier/entity"
	"github.com/stockline/supplier-core/internal/supplier/export"
	"github.com/stockline/supplier-core/internal/supplier/service"
	"github.com/stockline/supplier-core/internal/supplier/testutil"
)

type testEnv struct {
	router *gin.Engine
	token  string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repo := testutil.NewTestRepository(t, db)
	svc := service.NewSupplierService(repo, export.NewExporter(zap.NewNop()), zap.NewNop())
	h := NewSupplierHandler(svc, nil)

	r := testutil.SetupRouter()
	h.Register(testutil.AuthGroup(r, "/api/v1"))

	return &testEnv{router: r, token: testutil.DefaultTestToken()}
}

func (e *testEnv) createSupplier(t *testing.T, code, name string) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(e.router, "POST", "/api/v1/suppliers", testutil.SupplierInput(code, name), e.token)
	if w.Code != 201 {
		t.Fatalf("seed create failed: status %d body %s", w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)["data"].(map[string]interface{})
}

// TestSuppliersRequireAuth verifies that every supplier route sits behind the
// JWT middleware.
func TestSuppliersRequireAuth(t *testing.T) {
	env := setupEnv(t)

	w := testutil.DoRequest(env.router, "GET", "/api/v1/suppliers", nil, "")
	if w.Code != 401 {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40100 {
		t.Fatalf("expected code 40100, got %v", resp["code"])
	}

	w = testutil.DoRequest(env.router, "GET", "/api/v1/suppliers", nil, "not-a-token")
	if w.Code != 401 {
		t.Fatalf("expected 401 with garbage token, got %d", w.Code)
	}
}

// TestCreateAndGetSupplier covers the happy path: create returns the full
// aggregate in the envelope and the supplier is retrievable afterwards.
func TestCreateAndGetSupplier(t *testing.T) {
	env := setupEnv(t)

	data := env.createSupplier(t, "HND001", "Handler Co")
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatalf("expected generated id in response, got %v", data)
	}
	if data["status"] != entity.StatusActive {
		t.Fatalf("expected active status, got %v", data["status"])
	}
	contacts, _ := data["contacts"].([]interface{})
	if len(contacts) != 1 {
		t.Fatalf("expected contacts in response, got %v", data["contacts"])
	}

	w := testutil.DoRequest(env.router, "GET", "/api/v1/suppliers/"+id, nil, env.token)
	if w.Code != 200 {
		t.Fatalf("get failed: status %d body %s", w.Code, w.Body.String())
	}
	got := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if got["code"] != "HND001" {
		t.Fatalf("expected code HND001, got %v", got["code"])
	}

	w = testutil.DoRequest(env.router, "GET", "/api/v1/suppliers/does-not-exist", nil, env.token)
	if w.Code != 404 {
		t.Fatalf("expected 404 for unknown id, got %d", w.Code)
	}
	if resp := testutil.ParseResponse(w); resp["code"].(float64) != 40400 {
		t.Fatalf("expected code 40400, got %v", resp["code"])
	}
}

// TestCreateSupplierValidationErrors checks that rule violations surface as a
// 400 with the aggregated violation list, not just the first failure.
func TestCreateSupplierValidationErrors(t *testing.T) {
	env := setupEnv(t)

	input := testutil.SupplierInput("bad code", "Broken Co")
	input.Status = "retired"
	input.Contacts = nil // loses the primary contact too

	w := testutil.DoRequest(env.router, "POST", "/api/v1/suppliers", input, env.token)
	if w.Code != 400 {
		t.Fatalf("expected 400, got %d body %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40001 {
		t.Fatalf("expected code 40001, got %v", resp["code"])
	}
	violations := resp["data"].(map[string]interface{})["errors"].([]interface{})
	codes := map[string]bool{}
	for _, v := range violations {
		codes[v.(map[string]interface{})["code"].(string)] = true
	}
	for _, want := range []string{"INVALID_CODE", "INVALID_STATUS", "NO_PRIMARY_CONTACT"} {
		if !codes[want] {
			t.Fatalf("expected violation %s in %v", want, codes)
		}
	}
}

// TestCreateSupplierDuplicateCode maps the code conflict to 409.
func TestCreateSupplierDuplicateCode(t *testing.T) {
	env := setupEnv(t)

	env.createSupplier(t, "DUP001", "First Co")
	w := testutil.DoRequest(env.router, "POST", "/api/v1/suppliers", testutil.SupplierInput("DUP001", "Second Co"), env.token)
	if w.Code != 409 {
		t.Fatalf("expected 409 on duplicate code, got %d body %s", w.Code, w.Body.String())
	}
}

// TestUpdateAndDeleteSupplier covers the partial update and the delete policy:
// a strategic supplier is refused with 409, an approved one goes away.
func TestUpdateAndDeleteSupplier(t *testing.T) {
	env := setupEnv(t)

	data := env.createSupplier(t, "UPD001", "Mutable Co")
	id := data["id"].(string)

	w := testutil.DoRequest(env.router, "PUT", "/api/v1/suppliers/"+id,
		gin.H{"tier": entity.TierStrategic, "notes": "critical source"}, env.token)
	if w.Code != 200 {
		t.Fatalf("update failed: status %d body %s", w.Code, w.Body.String())
	}
	updated := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if updated["tier"] != entity.TierStrategic || updated["name"] != "Mutable Co" {
		t.Fatalf("unexpected update result: %v", updated)
	}

	// Strategic suppliers are protected.
	w = testutil.DoRequest(env.router, "DELETE", "/api/v1/suppliers/"+id, nil, env.token)
	if w.Code != 409 {
		t.Fatalf("expected 409 deleting strategic supplier, got %d", w.Code)
	}
	if resp := testutil.ParseResponse(w); resp["code"].(float64) != 40901 {
		t.Fatalf("expected code 40901, got %v", resp["code"])
	}

	// Demote, then delete.
	w = testutil.DoRequest(env.router, "PUT", "/api/v1/suppliers/"+id,
		gin.H{"tier": entity.TierApproved}, env.token)
	if w.Code != 200 {
		t.Fatalf("demote failed: status %d body %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(env.router, "DELETE", "/api/v1/suppliers/"+id, nil, env.token)
	if w.Code != 200 {
		t.Fatalf("delete failed: status %d body %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(env.router, "GET", "/api/v1/suppliers/"+id, nil, env.token)
	if w.Code != 404 {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

// TestDeleteSupplierRequiresRole verifies that deletions are refused for
// callers without the supplier_admin role.
func TestDeleteSupplierRequiresRole(t *testing.T) {
	env := setupEnv(t)

	data := env.createSupplier(t, "ROL001", "Guarded Co")
	id := data["id"].(string)

	viewer := testutil.GenerateTestToken("viewer-001", "Viewer", "viewer@test.com", []string{"viewer"})
	w := testutil.DoRequest(env.router, "DELETE", "/api/v1/suppliers/"+id, nil, viewer)
	if w.Code != 403 {
		t.Fatalf("expected 403 for viewer delete, got %d body %s", w.Code, w.Body.String())
	}
	if resp := testutil.ParseResponse(w); resp["code"].(float64) != 40312 {
		t.Fatalf("expected code 40312, got %v", resp["code"])
	}

	// The supplier is untouched.
	w = testutil.DoRequest(env.router, "GET", "/api/v1/suppliers/"+id, nil, env.token)
	if w.Code != 200 {
		t.Fatalf("supplier must survive refused delete, got %d", w.Code)
	}
}

// TestListSuppliersPagination seeds three suppliers and pages through them.
func TestListSuppliersPagination(t *testing.T) {
	env := setupEnv(t)

	for i := 1; i <= 3; i++ {
		env.createSupplier(t, fmt.Sprintf("PAG%03d", i), fmt.Sprintf("Paged Co %d", i))
	}

	w := testutil.DoRequest(env.router, "GET", "/api/v1/suppliers?page=1&page_size=2", nil, env.token)
	if w.Code != 200 {
		t.Fatalf("list failed: status %d body %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 items on page 1, got %d", len(items))
	}
	pg := data["pagination"].(map[string]interface{})
	if pg["total"].(float64) != 3 || pg["total_pages"].(float64) != 2 {
		t.Fatalf("unexpected pagination: %v", pg)
	}

	w = testutil.DoRequest(env.router, "GET", "/api/v1/suppliers/search?q=Paged+Co+2", nil, env.token)
	if w.Code != 200 {
		t.Fatalf("search failed: status %d body %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if len(data["items"].([]interface{})) != 1 {
		t.Fatalf("expected one search hit, got %v", data["items"])
	}
}

// TestScoresAndPerformance updates the scorecard and reads it back; the
// overall rating is the weighted blend computed by the service.
func TestScoresAndPerformance(t *testing.T) {
	env := setupEnv(t)

	data := env.createSupplier(t, "SCR001", "Scored Co")
	id := data["id"].(string)

	w := testutil.DoRequest(env.router, "PUT", "/api/v1/suppliers/"+id+"/scores",
		gin.H{"quality_rating": 4.0, "delivery_rating": 4.0, "price_rating": 4.0, "service_rating": 4.0}, env.token)
	if w.Code != 200 {
		t.Fatalf("score update failed: status %d body %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.router, "GET", "/api/v1/suppliers/"+id+"/performance", nil, env.token)
	if w.Code != 200 {
		t.Fatalf("performance failed: status %d body %s", w.Code, w.Body.String())
	}
	perf := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if perf["overall_rating"].(float64) != 4.0 {
		t.Fatalf("expected overall 4.0, got %v", perf["overall_rating"])
	}

	// Ratings outside 0-5 are rejected.
	w = testutil.DoRequest(env.router, "PUT", "/api/v1/suppliers/"+id+"/scores",
		gin.H{"quality_rating": 7.0}, env.token)
	if w.Code != 400 {
		t.Fatalf("expected 400 for out-of-range rating, got %d", w.Code)
	}

	w = testutil.DoRequest(env.router, "GET", "/api/v1/suppliers/metrics", nil, env.token)
	if w.Code != 200 {
		t.Fatalf("metrics failed: status %d body %s", w.Code, w.Body.String())
	}
	metrics := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if metrics["total_suppliers"].(float64) != 1 {
		t.Fatalf("unexpected metrics: %v", metrics)
	}
}

// TestBatchCreateSuppliers covers the all-or-nothing validation of batch
// create: one bad item fails the whole request before any writes.
func TestBatchCreateSuppliers(t *testing.T) {
	env := setupEnv(t)

	good := []entity.CreateSupplierInput{
		testutil.SupplierInput("BAT001", "Batch One"),
		testutil.SupplierInput("BAT002", "Batch Two"),
	}
	w := testutil.DoRequest(env.router, "POST", "/api/v1/suppliers/batch", good, env.token)
	if w.Code != 201 {
		t.Fatalf("batch create failed: status %d body %s", w.Code, w.Body.String())
	}
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 created, got %d", len(items))
	}

	bad := []entity.CreateSupplierInput{
		testutil.SupplierInput("BAT003", "Batch Three"),
		testutil.SupplierInput("BAT003", "Batch Three Dup"),
	}
	w = testutil.DoRequest(env.router, "POST", "/api/v1/suppliers/batch", bad, env.token)
	if w.Code != 409 {
		t.Fatalf("expected 409 for intra-batch duplicate, got %d body %s", w.Code, w.Body.String())
	}
	// Nothing from the failed batch was written.
	w = testutil.DoRequest(env.router, "GET", "/api/v1/suppliers?search=BAT003", nil, env.token)
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if len(data["items"].([]interface{})) != 0 {
		t.Fatalf("failed batch must not write, found %v", data["items"])
	}
}

// TestExportSuppliersCSV renders a CSV report and checks the download headers.
func TestExportSuppliersCSV(t *testing.T) {
	env := setupEnv(t)

	env.createSupplier(t, "EXP001", "Export Co")
	env.createSupplier(t, "EXP002", "Export Two Co")

	w := testutil.DoRequest(env.router, "POST", "/api/v1/suppliers/export",
		export.Request{Format: "csv", Template: "default"}, env.token)
	if w.Code != 200 {
		t.Fatalf("export failed: status %d body %s", w.Code, w.Body.String())
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="suppliers_default_`) || !strings.HasSuffix(cd, `.csv"`) {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if got := w.Header().Get("X-Record-Count"); got != "2" {
		t.Fatalf("expected X-Record-Count 2, got %q", got)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "Name,Code,") || !strings.Contains(body, "Export Co") {
		t.Fatalf("unexpected csv body: %q", body)
	}

	w = testutil.DoRequest(env.router, "POST", "/api/v1/suppliers/export",
		export.Request{Format: "pdf"}, env.token)
	if w.Code != 400 {
		t.Fatalf("expected 400 for unsupported format, got %d", w.Code)
	}
}
