package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orderService *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// CreateOrderRequest is the HTTP request body for creating an order.
type CreateOrderRequest struct {
	CompanyID       string   `json:"company_id"`
	CreatedBy       string   `json:"created_by,omitempty"`
	PickupAddress   string   `json:"pickup_address"`
	PickupLat       *float64 `json:"pickup_lat,omitempty"`
	PickupLng       *float64 `json:"pickup_lng,omitempty"`
	DeliveryAddress string   `json:"delivery_address"`
	DeliveryLat     *float64 `json:"delivery_lat,omitempty"`
	DeliveryLng     *float64 `json:"delivery_lng,omitempty"`
	Price           float64  `json:"price"`
}

// AcceptOrderRequest is the HTTP request body for accepting an order.
type AcceptOrderRequest struct {
	DriverID string `json:"driver_id"`
}

// AdvanceStatusRequest is the HTTP request body for advancing an order.
type AdvanceStatusRequest struct {
	DriverID   string `json:"driver_id"`
	Status     string `json:"status"`
	PickupCode string `json:"pickup_code,omitempty"`
}

// OrderResponse is the HTTP representation of an order. The pickup code is
// exposed only on creation so the dispatcher can hand it to the sender.
type OrderResponse struct {
	ID              string   `json:"id"`
	DisplayID       string   `json:"display_id"`
	CompanyID       string   `json:"company_id"`
	Status          string   `json:"status"`
	DriverID        string   `json:"driver_id,omitempty"`
	PickupAddress   string   `json:"pickup_address"`
	PickupLat       *float64 `json:"pickup_lat,omitempty"`
	PickupLng       *float64 `json:"pickup_lng,omitempty"`
	DeliveryAddress string   `json:"delivery_address"`
	DeliveryLat     *float64 `json:"delivery_lat,omitempty"`
	DeliveryLng     *float64 `json:"delivery_lng,omitempty"`
	Price           float64  `json:"price"`
	PickupCode      string   `json:"pickup_code,omitempty"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// HistoryEntryResponse is the HTTP representation of one audit entry.
type HistoryEntryResponse struct {
	Status       string `json:"status"`
	Actor        string `json:"actor,omitempty"`
	Note         string `json:"note,omitempty"`
	SystemRevert bool   `json:"system_revert"`
	RecordedAt   string `json:"recorded_at"`
}

// CreateOrder handles POST /v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), service.CreateOrderRequest{
		CompanyID:       req.CompanyID,
		CreatedBy:       req.CreatedBy,
		PickupAddress:   req.PickupAddress,
		PickupCoord:     coordFromRequest(req.PickupLat, req.PickupLng),
		DeliveryAddress: req.DeliveryAddress,
		DeliveryCoord:   coordFromRequest(req.DeliveryLat, req.DeliveryLng),
		Price:           req.Price,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order, true))
}

// GetOrder handles GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order, false))
}

// GetHistory handles GET /v1/orders/:id/history
func (h *OrderHandler) GetHistory(c *gin.Context) {
	entries, err := h.orderService.GetOrderHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, HistoryEntryResponse{
			Status:       string(e.Status),
			Actor:        e.Actor,
			Note:         e.Note,
			SystemRevert: e.IsSystemRevert(),
			RecordedAt:   e.RecordedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, response)
}

// ListOrders handles GET /v1/orders?company_id=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), c.Query("company_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponses(orders))
}

// ListVisibleOrders handles GET /v1/orders/visible?company_id=&driver_id=
func (h *OrderHandler) ListVisibleOrders(c *gin.Context) {
	orders, err := h.orderService.ListVisibleOrders(c.Request.Context(), c.Query("company_id"), c.Query("driver_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponses(orders))
}

// AcceptOrder handles POST /v1/orders/:id/accept
func (h *OrderHandler) AcceptOrder(c *gin.Context) {
	var req AcceptOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.orderService.AcceptOrder(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order, false))
}

// AdvanceStatus handles POST /v1/orders/:id/status
func (h *OrderHandler) AdvanceStatus(c *gin.Context) {
	var req AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.orderService.AdvanceStatus(c.Request.Context(), service.AdvanceStatusRequest{
		OrderID:    c.Param("id"),
		DriverID:   req.DriverID,
		To:         domain.OrderStatus(req.Status),
		PickupCode: req.PickupCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order, false))
}

func coordFromRequest(lat, lng *float64) *domain.Coordinate {
	if lat == nil || lng == nil {
		return nil
	}
	return &domain.Coordinate{Lat: *lat, Lng: *lng}
}

func coordToResponse(c *domain.Coordinate) (*float64, *float64) {
	if c == nil {
		return nil, nil
	}
	lat, lng := c.Lat, c.Lng
	return &lat, &lng
}

func toOrderResponse(order *domain.Order, includeCode bool) OrderResponse {
	pickupLat, pickupLng := coordToResponse(order.PickupCoord)
	deliveryLat, deliveryLng := coordToResponse(order.DeliveryCoord)

	resp := OrderResponse{
		ID:              order.ID,
		DisplayID:       order.DisplayID(),
		CompanyID:       order.CompanyID,
		Status:          string(order.Status),
		DriverID:        order.DriverID,
		PickupAddress:   order.PickupAddress,
		PickupLat:       pickupLat,
		PickupLng:       pickupLng,
		DeliveryAddress: order.DeliveryAddress,
		DeliveryLat:     deliveryLat,
		DeliveryLng:     deliveryLng,
		Price:           order.Price,
		CreatedAt:       order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       order.UpdatedAt.Format(time.RFC3339),
	}
	if includeCode {
		resp.PickupCode = order.PickupCode
	}
	return resp
}

func toOrderResponses(orders []*domain.Order) []OrderResponse {
	response := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		response = append(response, toOrderResponse(o, false))
	}
	return response
}
