package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stockline/supplier-core/internal/middleware"
	"github.com/stockline/supplier-core/internal/supplier/entity"
	"github.com/stockline/supplier-core/internal/supplier/export"
	"github.com/stockline/supplier-core/internal/supplier/service"
)

// SupplierHandler is the HTTP boundary over the supplier service. Auth,
// parsing and status-code mapping live here; every rule lives below.
type SupplierHandler struct {
	svc      *service.SupplierService
	archiver *export.Archiver
}

func NewSupplierHandler(svc *service.SupplierService, archiver *export.Archiver) *SupplierHandler {
	return &SupplierHandler{svc: svc, archiver: archiver}
}

// Register mounts the supplier routes on the given group. Deletions are
// additionally gated on the supplier_admin role.
func (h *SupplierHandler) Register(g *gin.RouterGroup) {
	g.GET("/suppliers", h.ListSuppliers)
	g.GET("/suppliers/metrics", h.GetMetrics)
	g.GET("/suppliers/search", h.SearchSuppliers)
	g.GET("/suppliers/:id", h.GetSupplier)
	g.GET("/suppliers/:id/similar", h.FindSimilar)
	g.GET("/suppliers/:id/performance", h.GetPerformance)
	g.PUT("/suppliers/:id/scores", h.UpdateScores)
	g.POST("/suppliers", h.CreateSupplier)
	g.POST("/suppliers/batch", h.CreateManySuppliers)
	g.PUT("/suppliers/batch", h.UpdateManySuppliers)
	g.DELETE("/suppliers/batch", middleware.RequireRole("supplier_admin"), h.DeleteManySuppliers)
	g.PUT("/suppliers/:id", h.UpdateSupplier)
	g.DELETE("/suppliers/:id", middleware.RequireRole("supplier_admin"), h.DeleteSupplier)
	g.POST("/suppliers/export", h.ExportSuppliers)
}

func listFilter(c *gin.Context) entity.ListFilter {
	page, pageSize := GetPagination(c)
	f := entity.ListFilter{
		Search: c.Query("search"),
		Page:   page,
		Limit:  pageSize,
	}
	if v := c.Query("status"); v != "" {
		f.Statuses = strings.Split(v, ",")
	}
	if v := c.Query("tier"); v != "" {
		f.Tiers = strings.Split(v, ",")
	}
	if v := c.Query("category"); v != "" {
		f.Categories = strings.Split(v, ",")
	}
	return f
}

// ListSuppliers
// GET /api/v1/suppliers?search=&status=&tier=&category=&page=&page_size=
func (h *SupplierHandler) ListSuppliers(c *gin.Context) {
	page, err := h.svc.GetSuppliers(c.Request.Context(), listFilter(c))
	if err != nil {
		RenderError(c, err)
		return
	}
	Success(c, ListResponse{
		Items: page.Suppliers,
		Pagination: &Pagination{
			Page:       page.Page,
			PageSize:   page.Limit,
			Total:      int(page.Total),
			TotalPages: page.TotalPages,
		},
	})
}

// GetSupplier
// GET /api/v1/suppliers/:id
func (h *SupplierHandler) GetSupplier(c *gin.Context) {
	supplier, err := h.svc.GetSupplier(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	Success(c, supplier)
}

// CreateSupplier
// POST /api/v1/suppliers
func (h *SupplierHandler) CreateSupplier(c *gin.Context) {
	var input entity.CreateSupplierInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	supplier, err := h.svc.CreateSupplier(c.Request.Context(), &input)
	if err != nil {
		RenderError(c, err)
		return
	}
	Created(c, supplier)
}

// UpdateSupplier
// PUT /api/v1/suppliers/:id
func (h *SupplierHandler) UpdateSupplier(c *gin.Context) {
	var input entity.UpdateSupplierInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	supplier, err := h.svc.UpdateSupplier(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		RenderError(c, err)
		return
	}
	Success(c, supplier)
}

// DeleteSupplier
// DELETE /api/v1/suppliers/:id
func (h *SupplierHandler) DeleteSupplier(c *gin.Context) {
	if err := h.svc.DeleteSupplier(c.Request.Context(), c.Param("id")); err != nil {
		RenderError(c, err)
		return
	}
	Success(c, nil)
}

// CreateManySuppliers
// POST /api/v1/suppliers/batch
func (h *SupplierHandler) CreateManySuppliers(c *gin.Context) {
	var inputs []entity.CreateSupplierInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	suppliers, err := h.svc.CreateManySuppliers(c.Request.Context(), inputs)
	if err != nil {
		RenderError(c, err)
		return
	}
	Created(c, gin.H{"items": suppliers})
}

// UpdateManySuppliers
// PUT /api/v1/suppliers/batch
func (h *SupplierHandler) UpdateManySuppliers(c *gin.Context) {
	var items []service.UpdateItem
	if err := c.ShouldBindJSON(&items); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	suppliers, err := h.svc.UpdateManySuppliers(c.Request.Context(), items)
	if err != nil {
		RenderError(c, err)
		return
	}
	Success(c, gin.H{"items": suppliers})
}

// DeleteManySuppliers
// DELETE /api/v1/suppliers/batch
func (h *SupplierHandler) DeleteManySuppliers(c *gin.Context) {
	var body struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.svc.DeleteManySuppliers(c.Request.Context(), body.IDs); err != nil {
		RenderError(c, err)
		return
	}
	Success(c, nil)
}

// GetMetrics
// GET /api/v1/suppliers/metrics
func (h *SupplierHandler) GetMetrics(c *gin.Context) {
	metrics, err := h.svc.GetSupplierMetrics(c.Request.Context())
	if err != nil {
		RenderError(c, err)
		return
	}
	Success(c, metrics)
}

// SearchSuppliers
// GET /api/v1/suppliers/search?q=
func (h *SupplierHandler) SearchSuppliers(c *gin.Context) {
	page, err := h.svc.SearchSuppliers(c.Request.Context(), c.Query("q"), listFilter(c))
	if err != nil {
		RenderError(c, err)
		return
	}
	Success(c, ListResponse{
		Items: page.Suppliers,
		Pagination: &Pagination{
			Page:       page.Page,
			PageSize:   page.Limit,
			Total:      int(page.Total),
			TotalPages: page.TotalPages,
		},
	})
}

// FindSimilar
// GET /api/v1/suppliers/:id/similar
func (h *SupplierHandler) FindSimilar(c *gin.Context) {
	suppliers, err := h.svc.FindSimilarSuppliers(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	Success(c, gin.H{"items": suppliers})
}

// GetPerformance
// GET /api/v1/suppliers/:id/performance
func (h *SupplierHandler) GetPerformance(c *gin.Context) {
	perf, err := h.svc.GetSupplierPerformance(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	Success(c, perf)
}

// UpdateScores
// PUT /api/v1/suppliers/:id/scores
func (h *SupplierHandler) UpdateScores(c *gin.Context) {
	var body struct {
		Quality  float64 `json:"quality_rating"`
		Delivery float64 `json:"delivery_rating"`
		Price    float64 `json:"price_rating"`
		Service  float64 `json:"service_rating"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	err := h.svc.UpdateSupplierScores(c.Request.Context(), c.Param("id"),
		body.Quality, body.Delivery, body.Price, body.Service)
	if err != nil {
		RenderError(c, err)
		return
	}
	Success(c, nil)
}

// ExportSuppliers renders a report. With archive=true the artifact is also
// stored in object storage when an archiver is configured.
// POST /api/v1/suppliers/export
func (h *SupplierHandler) ExportSuppliers(c *gin.Context) {
	var req export.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.ExportSuppliers(c.Request.Context(), &req)
	if err != nil {
		RenderError(c, err)
		return
	}

	if c.Query("archive") == "true" && h.archiver != nil {
		if object, err := h.archiver.Store(c.Request.Context(), result); err == nil {
			c.Header("X-Export-Archive", object)
		}
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Header("X-Record-Count", strconv.Itoa(result.RecordCount))
	c.Data(200, result.MimeType, result.Data)
}
