package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/praxialabs/praxia/internal/notification/domain"
	recommendationdomain "github.com/praxialabs/praxia/internal/recommendation/domain"
)

type recommendationItemRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
	Dosage   string `json:"dosage"`
}

type createRecommendationRequest struct {
	PractitionerID string                      `json:"practitioner_id"`
	PatientID      string                      `json:"patient_id"`
	Title          string                      `json:"title"`
	Diagnosis      string                      `json:"diagnosis"`
	Items          []recommendationItemRequest `json:"items"`
}

func parseItemInputs(items []recommendationItemRequest) ([]recommendationdomain.ItemInput, error) {
	inputs := make([]recommendationdomain.ItemInput, 0, len(items))
	for _, item := range items {
		itemID, err := parseSnowflakeID(item.ItemID)
		if err != nil {
			return nil, newValidationError("items.item_id", "invalid_item_id", "invalid item id")
		}
		inputs = append(inputs, recommendationdomain.ItemInput{
			ItemID:   itemID,
			Quantity: item.Quantity,
			Dosage:   strings.TrimSpace(item.Dosage),
		})
	}
	return inputs, nil
}

func (s *Server) CreateRecommendation(c *gin.Context) {
	var req createRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	practitionerID, err := parseSnowflakeID(req.PractitionerID)
	if err != nil {
		AbortWithError(c, newValidationError("practitioner_id", "invalid_practitioner_id", "invalid practitioner id"))
		return
	}
	patientID, err := parseSnowflakeID(req.PatientID)
	if err != nil {
		AbortWithError(c, newValidationError("patient_id", "invalid_patient_id", "invalid patient id"))
		return
	}
	items, err := parseItemInputs(req.Items)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.recSvc.Create(c.Request.Context(), recommendationdomain.CreateRequest{
		PractitionerID: practitionerID,
		PatientID:      patientID,
		Title:          strings.TrimSpace(req.Title),
		Diagnosis:      strings.TrimSpace(req.Diagnosis),
		Items:          items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRecommendations(c *gin.Context) {
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

	resp, err := s.recSvc.List(c.Request.Context(), recommendationdomain.ListRequest{
		PractitionerID: practitionerID,
		Status:         recommendationdomain.Status(strings.TrimSpace(query.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRecommendation(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	resp, err := s.recSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateRecommendationRequest struct {
	Title     string                      `json:"title"`
	Diagnosis string                      `json:"diagnosis"`
	Items     []recommendationItemRequest `json:"items"`
}

func (s *Server) UpdateRecommendation(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req updateRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	items, err := parseItemInputs(req.Items)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.recSvc.Update(c.Request.Context(), recommendationdomain.UpdateRequest{
		ID:        id,
		Title:     strings.TrimSpace(req.Title),
		Diagnosis: strings.TrimSpace(req.Diagnosis),
		Items:     items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRecommendation(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	if err := s.recSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type sendRecommendationRequest struct {
	Channels []string `json:"channels"`
	Message  string   `json:"message"`
	Resend   bool     `json:"resend"`
}

func (s *Server) SendRecommendation(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req sendRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.dispatcher.Dispatch(c.Request.Context(), notificationdomain.DispatchRequest{
		RecommendationID: id,
		Channels:         req.Channels,
		Message:          strings.TrimSpace(req.Message),
		Resend:           req.Resend,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
