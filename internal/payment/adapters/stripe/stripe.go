package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	paymentdomain "github.com/praxialabs/praxia/internal/payment/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "stripe"
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	sessionURL := strings.TrimSpace(cfg.SessionURL)
	if sessionURL == "" {
		sessionURL = "https://api.stripe.com/v1/checkout/sessions"
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
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, paymentdomain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object stripeSession `json:"object"`
	} `json:"data"`
}

type stripeSession struct {
	ID          string            `json:"id"`
	AmountTotal int64             `json:"amount_total"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var eventType string
	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		eventType = paymentdomain.EventTypePaymentSucceeded
	case "checkout.session.async_payment_failed", "payment_intent.payment_failed":
		eventType = paymentdomain.EventTypePaymentFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	session := event.Data.Object
	occurred := time.Unix(event.Created, 0).UTC()
	if event.Created == 0 {
		occurred = time.Now().UTC()
	}

	return &paymentdomain.PaymentEvent{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		Type:            eventType,
		Amount:          session.AmountTotal,
		Currency:        strings.ToUpper(session.Currency),
		OccurredAt:      occurred,
		CheckoutToken:   session.Metadata["checkout_token"],
		PaymentMethod:   session.Metadata["payment_method"],
		Shipping: paymentdomain.ShippingDetails{
			Address:    session.Metadata["shipping_address"],
			City:       session.Metadata["shipping_city"],
			PostalCode: session.Metadata["shipping_postal_code"],
			Phone:      session.Metadata["shipping_phone"],
		},
		RawPayload: payload,
	}, nil
}

func (a *Adapter) CreateSession(ctx context.Context, req paymentdomain.CreateSessionRequest) (paymentdomain.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", req.Amount))
	form.Set("line_items[0][price_data][product_data][name]", "Treatment recommendation")
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[checkout_token]", req.CheckoutToken)
	form.Set("metadata[payment_method]", req.PaymentMethod)
	form.Set("metadata[shipping_address]", req.Shipping.Address)
	form.Set("metadata[shipping_city]", req.Shipping.City)
	form.Set("metadata[shipping_postal_code]", req.Shipping.PostalCode)
	form.Set("metadata[shipping_phone]", req.Shipping.Phone)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.sessionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return paymentdomain.CheckoutSession{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+a.secretKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return paymentdomain.CheckoutSession{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return paymentdomain.CheckoutSession{}, err
	}
	if resp.StatusCode >= 300 {
		return paymentdomain.CheckoutSession{}, fmt.Errorf("stripe session create failed: status %d: %s", resp.StatusCode, string(body))
	}

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &session); err != nil {
		return paymentdomain.CheckoutSession{}, paymentdomain.ErrInvalidPayload
	}
	return paymentdomain.CheckoutSession{SessionID: session.ID, RedirectURL: session.URL}, nil
}
