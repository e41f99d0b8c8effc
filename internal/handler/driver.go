package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/service"
)

// DriverHandler handles HTTP requests for driver positions.
type DriverHandler struct {
	locationService *service.LocationService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(locationService *service.LocationService) *DriverHandler {
	return &DriverHandler{locationService: locationService}
}

// ReportPositionRequest is the HTTP request body for a GPS report.
type ReportPositionRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PositionResponse is the HTTP representation of a driver position.
type PositionResponse struct {
	DriverID   string  `json:"driver_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	RecordedAt string  `json:"recorded_at,omitempty"`
}

// ReportPosition handles POST /v1/drivers/:id/location
func (h *DriverHandler) ReportPosition(c *gin.Context) {
	var req ReportPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.locationService.ReportPosition(c.Request.Context(), c.Param("id"), req.Lat, req.Lng); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPosition handles GET /v1/drivers/:id/location
func (h *DriverHandler) GetPosition(c *gin.Context) {
	pos, err := h.locationService.LastPosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if pos == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no known position"})
		return
	}

	response := PositionResponse{
		DriverID: pos.DriverID,
		Lat:      pos.Lat,
		Lng:      pos.Lng,
	}
	if !pos.RecordedAt.IsZero() {
		response.RecordedAt = pos.RecordedAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, response)
}

// NearbyDrivers handles GET /v1/drivers/nearby?lat=&lng=&radius_km=
func (h *DriverHandler) NearbyDrivers(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required"})
		return
	}
	radiusKm, _ := strconv.ParseFloat(c.Query("radius_km"), 64)

	drivers, err := h.locationService.NearbyDrivers(c.Request.Context(), lat, lng, radiusKm)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PositionResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, PositionResponse{DriverID: d.DriverID, Lat: d.Lat, Lng: d.Lng})
	}
	c.JSON(http.StatusOK, response)
}
