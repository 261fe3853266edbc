package main

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/stockroom_backend/models"
	"github.com/gin-gonic/gin"
)

// maxImportFileBytes caps uploads; a 450-op chunked import never needs
// files anywhere near this.
const maxImportFileBytes = 20 << 20

func adjustmentStatus(err error) int {
	var exceeds *models.DeductionExceedsStockError
	switch {
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrShelfNotFound):
		return http.StatusNotFound
	case errors.As(err, &exceeds),
		errors.Is(err, models.ErrShelfPathMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func adjustmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewAdjustment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		result, err := models.AdjustInventory(c.Request.Context(), &input)
		if err != nil {
			status := adjustmentStatus(err)
			if status == http.StatusInternalServerError &&
				(strings.Contains(err.Error(), "required") || strings.Contains(err.Error(), "invalid") ||
					strings.Contains(err.Error(), "must be") || strings.Contains(err.Error(), "would go negative")) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func importHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxImportFileBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is too large"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImportFileBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}

		options := models.ImportOptions{
			DryRun: strings.EqualFold(c.Query("dry_run"), "true") || c.PostForm("dry_run") == "true",
		}

		result, err := models.ImportInventory(c.Request.Context(), fileHeader.Filename, data, options)
		if err != nil {
			if strings.Contains(err.Error(), "already in progress") {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listPlacementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.PlacementFilter{
			NonZeroOnly: strings.EqualFold(c.Query("non_zero"), "true"),
		}
		if sku := c.Query("sku"); sku != "" {
			filter.Sku = &sku
		}
		if shelf := c.Query("shelf_code"); shelf != "" {
			filter.ShelfCode = &shelf
		}
		if warehouse := c.Query("warehouse_code"); warehouse != "" {
			filter.WarehouseCode = &warehouse
		}
		placements, err := models.ListPlacement(c.Request.Context(), &filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"placements": placements})
	}
}

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func listProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.ListProduct(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	}
}

func listProductLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}
		logs, err := models.ListInventoryLogByProduct(c.Request.Context(), id)
		if err != nil {
			status := http.StatusInternalServerError
			if strings.Contains(err.Error(), "not found") {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs})
	}
}
