package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	patientdomain "github.com/praxialabs/praxia/internal/patient/domain"
	recommendationdomain "github.com/praxialabs/praxia/internal/recommendation/domain"
)

const (
	ChannelEmail = "email"
	ChannelLine  = "line"
)

type SendRequest struct {
	Patient        patientdomain.Patient
	Recommendation recommendationdomain.Recommendation
	CheckoutURL    string
	ExpiresAt      time.Time
	Message        string
}

// ChannelSender is one delivery channel. Available reports whether the
// patient can receive on this channel at all; a selected channel that
// fails Available is a caller error, not a delivery failure.
type ChannelSender interface {
	Channel() string
	Available(patient patientdomain.Patient) error
	Send(ctx context.Context, req SendRequest) error

	// Notify delivers a standalone message with no checkout link.
	Notify(ctx context.Context, patient patientdomain.Patient, message string) error
}

type DispatchRequest struct {
	RecommendationID snowflake.ID
	Channels         []string
	Message          string
	Resend           bool
}

type ChannelResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DispatchResult reports every attempted channel individually.
// Success is true only when all of them delivered.
type DispatchResult struct {
	Success bool                     `json:"success"`
	Results map[string]ChannelResult `json:"results"`
}

type Dispatcher interface {
	// Dispatch mints a fresh checkout token, fans the link out over
	// the requested channels and records how the recommendation was
	// last sent.
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)

	// NotifyPatient fans a plain message out over channels without
	// touching any recommendation state. Used for order status
	// updates.
	NotifyPatient(ctx context.Context, patientID snowflake.ID, channels []string, message string) (DispatchResult, error)
}

var (
	ErrNoChannels    = errors.New("no_channels_selected")
	ErrAlreadySent   = errors.New("recommendation_already_sent")
	ErrNotResendable = errors.New("recommendation_not_resendable")
)

// ChannelError marks a selected channel the patient cannot receive on.
// It is a precondition failure raised before any delivery attempt.
type ChannelError struct {
	Channel string
	Reason  string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s unavailable: %s", e.Channel, e.Reason)
}
