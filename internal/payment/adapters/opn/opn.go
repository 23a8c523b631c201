package opn

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/praxialabs/praxia/internal/payment/domain"
)

// Opn Payments (Omise) is the processor used for Thai QR and local
// card payments.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "opn"
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	sessionURL := strings.TrimSpace(cfg.SessionURL)
	if sessionURL == "" {
		sessionURL = "https://api.omise.co/links"
	}
	return &Adapter{
		secretKey:     strings.TrimSpace(cfg.SecretKey),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		sessionURL:    sessionURL,
		client:        &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type Adapter struct {
	secretKey     string
	webhookSecret string
	sessionURL    string
	client        *http.Client
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get("X-Opn-Signature"))
	if signature == "" {
		return paymentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

type opnEvent struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	Data      struct {
		ID       string            `json:"id"`
		Amount   int64             `json:"amount"`
		Currency string            `json:"currency"`
		Status   string            `json:"status"`
		Metadata map[string]string `json:"metadata"`
	} `json:"data"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event opnEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if strings.TrimSpace(event.Key) != "charge.complete" {
		return nil, paymentdomain.ErrEventIgnored
	}

	var eventType string
	switch event.Data.Status {
	case "successful":
		eventType = paymentdomain.EventTypePaymentSucceeded
	case "failed", "expired":
		eventType = paymentdomain.EventTypePaymentFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	occurred := event.CreatedAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	return &paymentdomain.PaymentEvent{
		Provider:        "opn",
		ProviderEventID: event.ID,
		Type:            eventType,
		Amount:          event.Data.Amount,
		Currency:        strings.ToUpper(event.Data.Currency),
		OccurredAt:      occurred,
		CheckoutToken:   event.Data.Metadata["checkout_token"],
		PaymentMethod:   event.Data.Metadata["payment_method"],
		Shipping: paymentdomain.ShippingDetails{
			Address:    event.Data.Metadata["shipping_address"],
			City:       event.Data.Metadata["shipping_city"],
			PostalCode: event.Data.Metadata["shipping_postal_code"],
			Phone:      event.Data.Metadata["shipping_phone"],
		},
		RawPayload: payload,
	}, nil
}

func (a *Adapter) CreateSession(ctx context.Context, req paymentdomain.CreateSessionRequest) (paymentdomain.CheckoutSession, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":   req.Amount,
		"currency": strings.ToLower(req.Currency),
		"title":    "Treatment recommendation",
		"metadata": map[string]string{
			"checkout_token":       req.CheckoutToken,
			"payment_method":       req.PaymentMethod,
			"shipping_address":     req.Shipping.Address,
			"shipping_city":        req.Shipping.City,
			"shipping_postal_code": req.Shipping.PostalCode,
			"shipping_phone":       req.Shipping.Phone,
		},
	})
	if err != nil {
		return paymentdomain.CheckoutSession{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.sessionURL, bytes.NewReader(body))
	if err != nil {
		return paymentdomain.CheckoutSession{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(a.secretKey, "")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return paymentdomain.CheckoutSession{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return paymentdomain.CheckoutSession{}, err
	}
	if resp.StatusCode >= 300 {
		return paymentdomain.CheckoutSession{}, fmt.Errorf("opn link create failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var link struct {
		ID           string `json:"id"`
		AuthorizeURI string `json:"authorize_uri"`
	}
	if err := json.Unmarshal(respBody, &link); err != nil {
		return paymentdomain.CheckoutSession{}, paymentdomain.ErrInvalidPayload
	}
	return paymentdomain.CheckoutSession{SessionID: link.ID, RedirectURL: link.AuthorizeURI}, nil
}
