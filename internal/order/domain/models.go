package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// allowedTransitions is the closed transition table. cancelled is
// reachable from every non-terminal state and is itself terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusShipped, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

const (
	PaymentMethodPayOnDelivery = "pay_on_delivery"
	PaymentMethodCard          = "card"
	PaymentMethodQR            = "qr"
)

type Order struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	RecommendationID snowflake.ID `gorm:"not null;index" json:"recommendation_id"`
	CheckoutTokenID  snowflake.ID `gorm:"not null;uniqueIndex" json:"-"`
	PatientID        snowflake.ID `gorm:"not null;index" json:"patient_id"`
	PractitionerID   snowflake.ID `gorm:"not null;index" json:"practitioner_id"`

	Status        Status        `gorm:"not null;default:'pending'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"not null;default:'unpaid'" json:"payment_status"`
	PaymentMethod string        `gorm:"not null" json:"payment_method"`

	ShippingAddress    string `gorm:"not null" json:"shipping_address"`
	ShippingCity       string `gorm:"not null" json:"shipping_city"`
	ShippingPostalCode string `gorm:"not null" json:"shipping_postal_code"`
	ShippingPhone      string `gorm:"not null" json:"shipping_phone"`

	CourierName           string     `json:"courier_name,omitempty"`
	TrackingNumber        string     `json:"tracking_number,omitempty"`
	CourierTrackingURL    string     `gorm:"column:courier_tracking_url" json:"courier_tracking_url,omitempty"`
	ShippedAt             *time.Time `json:"shipped_at,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date,omitempty"`
	ActualDeliveryDate    *time.Time `json:"actual_delivery_date,omitempty"`
	ShipmentWeightGrams   *int64     `json:"shipment_weight_grams,omitempty"`

	Notes       string         `json:"notes,omitempty"`
	TotalAmount int64          `gorm:"not null" json:"total_amount"`
	Currency    string         `gorm:"not null" json:"currency"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// TimelineStep is one entry of the patient-facing tracking view.
type TimelineStep struct {
	Step      string     `json:"step"`
	Completed bool       `json:"completed"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Estimate  bool       `json:"estimate,omitempty"`
}

// Timeline derives the tracking view from the order's timestamps. Pure
// function, no side effects.
func Timeline(order Order) []TimelineStep {
	createdAt := order.CreatedAt

	if order.Status == StatusCancelled {
		cancelledAt := order.UpdatedAt
		return []TimelineStep{
			{Step: "order_placed", Completed: true, Timestamp: &createdAt},
			{Step: "cancelled", Completed: true, Timestamp: &cancelledAt},
		}
	}

	steps := []TimelineStep{
		{Step: "order_placed", Completed: true, Timestamp: &createdAt},
	}

	processing := TimelineStep{Step: "processing"}
	if order.Status != StatusPending {
		processing.Completed = true
	}
	steps = append(steps, processing)

	shipped := TimelineStep{Step: "shipped"}
	if order.Status == StatusShipped || order.Status == StatusDelivered {
		shipped.Completed = true
		shipped.Timestamp = order.ShippedAt
	}
	steps = append(steps, shipped)

	delivered := TimelineStep{Step: "delivered"}
	switch {
	case order.Status == StatusDelivered:
		delivered.Completed = true
		delivered.Timestamp = order.ActualDeliveryDate
	case order.EstimatedDeliveryDate != nil:
		delivered.Timestamp = order.EstimatedDeliveryDate
		delivered.Estimate = true
	}
	steps = append(steps, delivered)

	return steps
}
