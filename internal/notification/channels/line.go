package channels

import (
	"context"
	"fmt"

	"github.com/praxialabs/praxia/internal/notification/domain"
	patientdomain "github.com/praxialabs/praxia/internal/patient/domain"
	lineprovider "github.com/praxialabs/praxia/internal/providers/line"
)

// LineSender pushes the checkout link to the patient's linked LINE
// account.
type LineSender struct {
	provider lineprovider.Provider
}

func NewLineSender(provider lineprovider.Provider) *LineSender {
	return &LineSender{provider: provider}
}

func (s *LineSender) Channel() string { return domain.ChannelLine }

func (s *LineSender) Available(patient patientdomain.Patient) error {
	if patient.LineUserID == "" {
		return &domain.ChannelError{Channel: domain.ChannelLine, Reason: "no linked LINE account"}
	}
	return nil
}

func (s *LineSender) Send(ctx context.Context, req domain.SendRequest) error {
	text := req.Message
	if text == "" {
		text = "You have a new treatment recommendation."
	}
	text = fmt.Sprintf("%s\n\nOrder here (valid until %s, single use):\n%s",
		text,
		req.ExpiresAt.Format("2 Jan 15:04"),
		req.CheckoutURL,
	)
	return s.provider.PushMessage(ctx, req.Patient.LineUserID, text)
}

func (s *LineSender) Notify(ctx context.Context, patient patientdomain.Patient, message string) error {
	return s.provider.PushMessage(ctx, patient.LineUserID, message)
}
