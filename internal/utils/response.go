package utils

import (
	"net/http"

	"autorepair-shop-server/internal/apperror"

	"github.com/gin-gonic/gin"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ResponseData represents the structure of a standard API response.
type ResponseData struct {
	Status  string                `json:"status"`
	Message string                `json:"message,omitempty"`
	Data    interface{}           `json:"data,omitempty"`
	Results *int                  `json:"results,omitempty"`
	Total   *int64                `json:"total,omitempty"`
	Page    *int                  `json:"page,omitempty"`
	Pages   *int                  `json:"pages,omitempty"`
	Errors  []apperror.FieldError `json:"errors,omitempty"`
}

// Success sends a standard success response.
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, ResponseData{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// Created sends a standard resource created response.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, ResponseData{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// List sends a page of results along with the pagination counters.
func List(c *gin.Context, data interface{}, results int, p Pagination, total int64) {
	pages := p.Pages(total)
	page := p.Page
	c.JSON(http.StatusOK, ResponseData{
		Status:  StatusSuccess,
		Data:    data,
		Results: &results,
		Total:   &total,
		Page:    &page,
		Pages:   &pages,
	})
}

// Error sends a standard error response.
func Error(c *gin.Context, statusCode int, errorMessage string, fields ...apperror.FieldError) {
	c.JSON(statusCode, ResponseData{
		Status:  StatusError,
		Message: errorMessage,
		Errors:  fields,
	})
}
