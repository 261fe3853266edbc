package main

import (
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/stockroom_backend/models"
	"github.com/gin-gonic/gin"
)

func locationStatus(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound
	case strings.Contains(msg, "duplicate"),
		strings.Contains(msg, "required"),
		strings.Contains(msg, "cannot be"),
		strings.Contains(msg, "has stock"),
		strings.Contains(msg, "has racks"),
		strings.Contains(msg, "has shelves"),
		strings.Contains(msg, "does not belong"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func createWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewWarehouse
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		warehouse, err := models.CreateWarehouse(c.Request.Context(), &input)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, warehouse)
	}
}

func listWarehousesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var name *string
		if v := c.Query("name"); v != "" {
			name = &v
		}
		warehouses, err := models.ListWarehouse(c.Request.Context(), name)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"warehouses": warehouses})
	}
}

func updateWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid warehouse id"})
			return
		}
		var input models.NewWarehouse
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		warehouse, err := models.UpdateWarehouse(c.Request.Context(), id, &input)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, warehouse)
	}
}

func deleteWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid warehouse id"})
			return
		}
		warehouse, err := models.DeleteWarehouse(c.Request.Context(), id)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, warehouse)
	}
}

func createZoneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewZone
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		zone, err := models.CreateZone(c.Request.Context(), &input)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, zone)
	}
}

func listZonesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var warehouseCode *string
		if v := c.Query("warehouse_code"); v != "" {
			warehouseCode = &v
		}
		zones, err := models.ListZone(c.Request.Context(), warehouseCode)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"zones": zones})
	}
}

func updateZoneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone id"})
			return
		}
		var input models.NewZone
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		zone, err := models.UpdateZone(c.Request.Context(), id, &input)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, zone)
	}
}

func deleteZoneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone id"})
			return
		}
		zone, err := models.DeleteZone(c.Request.Context(), id)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, zone)
	}
}

func createRackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewRack
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		rack, err := models.CreateRack(c.Request.Context(), &input)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, rack)
	}
}

func listRacksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var zoneCode *string
		if v := c.Query("zone_code"); v != "" {
			zoneCode = &v
		}
		racks, err := models.ListRack(c.Request.Context(), zoneCode)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"racks": racks})
	}
}

func updateRackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rack id"})
			return
		}
		var input models.NewRack
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		rack, err := models.UpdateRack(c.Request.Context(), id, &input)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rack)
	}
}

func deleteRackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rack id"})
			return
		}
		rack, err := models.DeleteRack(c.Request.Context(), id)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rack)
	}
}

func createShelfHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewShelf
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		shelf, err := models.CreateShelf(c.Request.Context(), &input)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, shelf)
	}
}

func listShelvesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var rackCode *string
		if v := c.Query("rack_code"); v != "" {
			rackCode = &v
		}
		shelves, err := models.ListShelf(c.Request.Context(), rackCode)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"shelves": shelves})
	}
}

func updateShelfHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shelf id"})
			return
		}
		var input models.NewShelf
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		shelf, err := models.UpdateShelf(c.Request.Context(), id, &input)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, shelf)
	}
}

func deleteShelfHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shelf id"})
			return
		}
		shelf, err := models.DeleteShelf(c.Request.Context(), id)
		if err != nil {
			c.JSON(locationStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, shelf)
	}
}
