package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/praxialabs/praxia/internal/order/domain"
)

func (s *Server) ListOrders(c *gin.Context) {
	var query struct {
		PractitionerID string `form:"practitioner_id"`
		Status         string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	practitionerID, err := parseOptionalSnowflakeID(query.PractitionerID)
	if err != nil {
		AbortWithError(c, newValidationError("practitioner_id", "invalid_practitioner_id", "invalid practitioner id"))
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListRequest{
		PractitionerID: practitionerID,
		Status:         orderdomain.Status(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrder(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	resp, err := s.orderSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrderTimeline(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	resp, err := s.orderSvc.Timeline(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateOrderStatusRequest struct {
	Status                *string    `json:"status"`
	CourierName           *string    `json:"courier_name"`
	TrackingNumber        *string    `json:"tracking_number"`
	ShippedAt             *time.Time `json:"shipped_at"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date"`
	ActualDeliveryDate    *time.Time `json:"actual_delivery_date"`
	ShipmentWeightGrams   *int64     `json:"shipment_weight_grams"`
	Notes                 *string    `json:"notes"`
	NotifyPatient         bool       `json:"notify_patient"`
}

func (s *Server) UpdateOrderStatus(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var status *orderdomain.Status
	if req.Status != nil {
		parsed := orderdomain.Status(strings.TrimSpace(*req.Status))
		if !parsed.Valid() {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
		status = &parsed
	}

	resp, err := s.orderSvc.UpdateStatus(c.Request.Context(), orderdomain.UpdateStatusRequest{
		ID:                    id,
		Status:                status,
		CourierName:           req.CourierName,
		TrackingNumber:        req.TrackingNumber,
		ShippedAt:             req.ShippedAt,
		EstimatedDeliveryDate: req.EstimatedDeliveryDate,
		ActualDeliveryDate:    req.ActualDeliveryDate,
		ShipmentWeightGrams:   req.ShipmentWeightGrams,
		Notes:                 req.Notes,
		NotifyPatient:         req.NotifyPatient,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
