package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/praxialabs/praxia/internal/order/domain"
	paymentdomain "github.com/praxialabs/praxia/internal/payment/domain"
)

// GetCheckout renders the recommendation behind a checkout link. The
// raw token never leaves the path parameter; only its hash is ever
// compared.
func (s *Server) GetCheckout(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("token"))

	token, err := s.tokenSvc.Validate(c.Request.Context(), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rec, err := s.recSvc.GetByID(c.Request.Context(), token.RecommendationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	practitioner, err := s.patientSvc.GetPractitioner(c.Request.Context(), rec.PractitionerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"practitioner_name": practitioner.Name,
		"title":             rec.Title,
		"items":             rec.Items,
		"total_cost":        rec.TotalCost,
		"currency":          rec.Currency,
		"expires_at":        token.ExpiresAt,
	}})
}

type submitCheckoutRequest struct {
	PaymentMethod string `json:"payment_method"`
	Shipping      struct {
		Address    string `json:"address"`
		City       string `json:"city"`
		PostalCode string `json:"postal_code"`
		Phone      string `json:"phone"`
	} `json:"shipping"`
}

// SubmitCheckout either creates the order directly (pay on delivery)
// or hands off to the payment provider. For provider methods the token
// stays live until the success webhook lands.
func (s *Server) SubmitCheckout(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("token"))

	var req submitCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	method := strings.TrimSpace(req.PaymentMethod)
	shipping := orderdomain.ShippingInfo{
		Address:    strings.TrimSpace(req.Shipping.Address),
		City:       strings.TrimSpace(req.Shipping.City),
		PostalCode: strings.TrimSpace(req.Shipping.PostalCode),
		Phone:      strings.TrimSpace(req.Shipping.Phone),
	}

	if method == orderdomain.PaymentMethodPayOnDelivery {
		order, err := s.orderSvc.CreateFromToken(c.Request.Context(), orderdomain.CreateFromTokenRequest{
			Token:         raw,
			Shipping:      shipping,
			PaymentMethod: method,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
		return
	}

	if method != orderdomain.PaymentMethodCard && method != orderdomain.PaymentMethodQR {
		AbortWithError(c, orderdomain.ErrInvalidPayment)
		return
	}
	if shipping.Address == "" || shipping.City == "" || shipping.PostalCode == "" || shipping.Phone == "" {
		AbortWithError(c, orderdomain.ErrMissingShippingInfo)
		return
	}

	token, err := s.tokenSvc.Validate(c.Request.Context(), raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	rec, err := s.recSvc.GetByID(c.Request.Context(), token.RecommendationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	session, err := s.paymentSvc.CreateCheckoutSession(c.Request.Context(), paymentdomain.CreateSessionRequest{
		CheckoutToken: raw,
		Amount:        rec.TotalCost,
		Currency:      rec.Currency,
		PaymentMethod: method,
		Shipping: paymentdomain.ShippingDetails{
			Address:    shipping.Address,
			City:       shipping.City,
			PostalCode: shipping.PostalCode,
			Phone:      shipping.Phone,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"session_id":   session.SessionID,
		"redirect_url": session.RedirectURL,
	}})
}
