package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stockline/supplier-core/internal/supplier/export"
	"github.com/stockline/supplier-core/internal/supplier/repository"
	"github.com/stockline/supplier-core/internal/supplier/service"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{Code: 0, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{Code: 0, Message: "success", Data: data})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{Code: code, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// RenderError maps a service error onto the response envelope: validation
// failures carry the full violation list, not-found maps to 404, conflicts
// and policy denials to 409, unsupported export formats to 400.
func RenderError(c *gin.Context, err error) {
	var (
		vf          *service.ValidationFailed
		conflict    *service.ConflictError
		policy      *service.PolicyError
		unsupported *export.UnsupportedFormatError
	)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "supplier not found")
	case errors.As(err, &vf):
		c.JSON(400, Response{
			Code:    40001,
			Message: vf.Error(),
			Data:    gin.H{"errors": vf.Errors},
		})
	case errors.As(err, &conflict):
		Conflict(c, conflict.Error())
	case errors.As(err, &policy):
		Error(c, 40901, policy.Error())
	case errors.As(err, &unsupported):
		BadRequest(c, unsupported.Error())
	default:
		InternalError(c, err.Error())
	}
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}
