package channels

import (
	"context"
	"fmt"

	"github.com/praxialabs/praxia/internal/notification/domain"
	patientdomain "github.com/praxialabs/praxia/internal/patient/domain"
	emailprovider "github.com/praxialabs/praxia/internal/providers/email"
)

// EmailSender delivers the checkout link over SMTP. It requires both a
// stored address and the patient's explicit consent flag.
type EmailSender struct {
	provider emailprovider.Provider
}

func NewEmailSender(provider emailprovider.Provider) *EmailSender {
	return &EmailSender{provider: provider}
}

func (s *EmailSender) Channel() string { return domain.ChannelEmail }

func (s *EmailSender) Available(patient patientdomain.Patient) error {
	if patient.Email == "" {
		return &domain.ChannelError{Channel: domain.ChannelEmail, Reason: "no email address on file"}
	}
	if !patient.EmailConsent {
		return &domain.ChannelError{Channel: domain.ChannelEmail, Reason: "email consent not granted"}
	}
	return nil
}

func (s *EmailSender) Send(ctx context.Context, req domain.SendRequest) error {
	subject := "Your treatment recommendation"
	if req.Recommendation.Title != "" {
		subject = fmt.Sprintf("Your treatment recommendation: %s", req.Recommendation.Title)
	}

	body := fmt.Sprintf(
		`<p>Hello %s,</p>
<p>%s</p>
<p><a href="%s">Review and order your recommendation</a></p>
<p>The link is valid until %s and can be used once.</p>`,
		req.Patient.Name,
		req.Message,
		req.CheckoutURL,
		req.ExpiresAt.Format("2 January 2006 15:04"),
	)

	return s.provider.Send(ctx, []string{req.Patient.Email}, subject, body)
}

func (s *EmailSender) Notify(ctx context.Context, patient patientdomain.Patient, message string) error {
	body := fmt.Sprintf("<p>Hello %s,</p><p>%s</p>", patient.Name, message)
	return s.provider.Send(ctx, []string{patient.Email}, "Order update", body)
}
