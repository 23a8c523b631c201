package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	commissiondomain "github.com/praxialabs/praxia/internal/commission/domain"
)

type createCommissionOverrideRequest struct {
	PractitionerID string     `json:"practitioner_id"`
	ItemID         string     `json:"item_id"`
	Category       string     `json:"category"`
	RateBps        int64      `json:"rate_bps"`
	EffectiveFrom  time.Time  `json:"effective_from"`
	EffectiveUntil *time.Time `json:"effective_until"`
}

func (s *Server) CreateCommissionOverride(c *gin.Context) {
	var req createCommissionOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var practitionerID, itemID *snowflake.ID
	if parsed, err := parseOptionalSnowflakeID(req.PractitionerID); err != nil {
		AbortWithError(c, newValidationError("practitioner_id", "invalid_practitioner_id", "invalid practitioner id"))
		return
	} else if parsed != 0 {
		practitionerID = &parsed
	}
	if parsed, err := parseOptionalSnowflakeID(req.ItemID); err != nil {
		AbortWithError(c, newValidationError("item_id", "invalid_item_id", "invalid item id"))
		return
	} else if parsed != 0 {
		itemID = &parsed
	}

	var category *string
	if trimmed := strings.TrimSpace(req.Category); trimmed != "" {
		category = &trimmed
	}

	resp, err := s.commissionSvc.CreateOverride(c.Request.Context(), commissiondomain.CreateOverrideRequest{
		PractitionerID: practitionerID,
		ItemID:         itemID,
		Category:       category,
		RateBps:        req.RateBps,
		EffectiveFrom:  req.EffectiveFrom,
		EffectiveUntil: req.EffectiveUntil,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCommissionRecords(c *gin.Context) {
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

	resp, err := s.commissionSvc.ListRecords(c.Request.Context(), commissiondomain.ListRecordsRequest{
		PractitionerID: practitionerID,
		Status:         commissiondomain.CommissionStatus(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrderCommission(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	resp, err := s.commissionSvc.GetRecordByOrderID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
