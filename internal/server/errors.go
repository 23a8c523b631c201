package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/praxialabs/praxia/internal/catalog/domain"
	checkouttokendomain "github.com/praxialabs/praxia/internal/checkouttoken/domain"
	commissiondomain "github.com/praxialabs/praxia/internal/commission/domain"
	notificationdomain "github.com/praxialabs/praxia/internal/notification/domain"
	orderdomain "github.com/praxialabs/praxia/internal/order/domain"
	patientdomain "github.com/praxialabs/praxia/internal/patient/domain"
	paymentdomain "github.com/praxialabs/praxia/internal/payment/domain"
	recommendationdomain "github.com/praxialabs/praxia/internal/recommendation/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	var channelErr *notificationdomain.ChannelError
	if errors.As(err, &channelErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   "channels",
					Code:    channelErr.Reason,
					Message: channelErr.Error(),
				},
			},
		}
	}

	var paymentErr *paymentdomain.PaymentError
	if errors.As(err, &paymentErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "payment_provider_error",
			Message: "payment provider error",
		}
	}

	switch {
	case errors.Is(err, checkouttokendomain.ErrTokenExpired):
		return http.StatusGone, errorPayload{
			Type:    "token_expired",
			Message: "checkout link expired",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_signature",
			Message: "webhook signature verification failed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, recommendationdomain.ErrEmptyItems),
		errors.Is(err, catalogdomain.ErrInvalidQuantity),
		errors.Is(err, catalogdomain.ErrInactiveItem),
		errors.Is(err, orderdomain.ErrInvalidPayment),
		errors.Is(err, orderdomain.ErrMissingShippingInfo),
		errors.Is(err, orderdomain.ErrCourierRequired),
		errors.Is(err, notificationdomain.ErrNoChannels),
		errors.Is(err, commissiondomain.ErrInvalidRate),
		errors.Is(err, commissiondomain.ErrInvalidScope),
		errors.Is(err, commissiondomain.ErrInvalidWindow),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, checkouttokendomain.ErrTokenAlreadyUsed),
		errors.Is(err, catalogdomain.ErrInsufficientStock),
		errors.Is(err, recommendationdomain.ErrInvalidTransition),
		errors.Is(err, recommendationdomain.ErrNotEditable),
		errors.Is(err, recommendationdomain.ErrNotDeletable),
		errors.Is(err, orderdomain.ErrInvalidTransition),
		errors.Is(err, notificationdomain.ErrAlreadySent),
		errors.Is(err, notificationdomain.ErrNotResendable),
		errors.Is(err, commissiondomain.ErrRecordAlreadyExists),
		errors.Is(err, paymentdomain.ErrEventAlreadyProcessed):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, checkouttokendomain.ErrTokenAlreadyUsed):
		return "checkout link already used"
	case errors.Is(err, catalogdomain.ErrInsufficientStock):
		return "insufficient stock"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, recommendationdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, patientdomain.ErrPatientNotFound),
		errors.Is(err, patientdomain.ErrPractitionerNotFound),
		errors.Is(err, checkouttokendomain.ErrTokenNotFound),
		errors.Is(err, commissiondomain.ErrRecordNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	return payload.Type, err.Error()
}
