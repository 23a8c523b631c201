package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	checkouttokendomain "github.com/praxialabs/praxia/internal/checkouttoken/domain"
	"github.com/praxialabs/praxia/internal/config"
	"github.com/praxialabs/praxia/internal/notification/channels"
	"github.com/praxialabs/praxia/internal/notification/domain"
	"github.com/praxialabs/praxia/internal/observability/metrics"
	patientdomain "github.com/praxialabs/praxia/internal/patient/domain"
	recommendationdomain "github.com/praxialabs/praxia/internal/recommendation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log             *zap.Logger
	Cfg             config.Config
	Metrics         *metrics.Metrics
	Recommendations recommendationdomain.Service
	Patients        patientdomain.Service
	Tokens          checkouttokendomain.Service
	Email           *channels.EmailSender
	Line            *channels.LineSender
}

type Dispatcher struct {
	log             *zap.Logger
	cfg             config.Config
	metrics         *metrics.Metrics
	recommendations recommendationdomain.Service
	patients        patientdomain.Service
	tokens          checkouttokendomain.Service
	senders         map[string]domain.ChannelSender
}

func New(p Params) domain.Dispatcher {
	return &Dispatcher{
		log:             p.Log.Named("notification.dispatcher"),
		cfg:             p.Cfg,
		metrics:         p.Metrics,
		recommendations: p.Recommendations,
		patients:        p.Patients,
		tokens:          p.Tokens,
		senders: map[string]domain.ChannelSender{
			p.Email.Channel(): p.Email,
			p.Line.Channel():  p.Line,
		},
	}
}

// resolveSenders checks every selected channel up front. Unknown or
// unavailable channels reject the whole call before any delivery.
func (d *Dispatcher) resolveSenders(channels []string, patient patientdomain.Patient) ([]domain.ChannelSender, error) {
	if len(channels) == 0 {
		return nil, domain.ErrNoChannels
	}
	senders := make([]domain.ChannelSender, 0, len(channels))
	for _, channel := range channels {
		sender, ok := d.senders[channel]
		if !ok {
			return nil, &domain.ChannelError{Channel: channel, Reason: "unknown channel"}
		}
		if err := sender.Available(patient); err != nil {
			return nil, err
		}
		senders = append(senders, sender)
	}
	return senders, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, req domain.DispatchRequest) (domain.DispatchResult, error) {
	rec, err := d.recommendations.GetByID(ctx, req.RecommendationID)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	if req.Resend {
		if rec.Status == recommendationdomain.StatusDraft || rec.Status == recommendationdomain.StatusDelivered {
			return domain.DispatchResult{}, domain.ErrNotResendable
		}
	} else if rec.Status != recommendationdomain.StatusDraft {
		return domain.DispatchResult{}, domain.ErrAlreadySent
	}

	patient, err := d.patients.GetPatient(ctx, rec.PatientID)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	senders, err := d.resolveSenders(req.Channels, patient)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	// Every send mints a fresh token; earlier tokens stay live until
	// they expire or get consumed.
	issued, err := d.tokens.Issue(ctx, rec.ID)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	sendReq := domain.SendRequest{
		Patient:        patient,
		Recommendation: rec,
		CheckoutURL:    fmt.Sprintf("%s/checkout/%s", d.cfg.PublicBaseURL, issued.Raw),
		ExpiresAt:      issued.Token.ExpiresAt,
		Message:        req.Message,
	}

	result := domain.DispatchResult{
		Success: true,
		Results: make(map[string]domain.ChannelResult, len(senders)),
	}
	for _, sender := range senders {
		channel := sender.Channel()
		if err := sender.Send(ctx, sendReq); err != nil {
			result.Success = false
			result.Results[channel] = domain.ChannelResult{Success: false, Error: err.Error()}
			d.metrics.RecordNotification(channel, "error")
			d.log.Warn("channel delivery failed",
				zap.String("channel", channel),
				zap.Int64("recommendation_id", int64(rec.ID)),
				zap.Error(err),
			)
			continue
		}
		result.Results[channel] = domain.ChannelResult{Success: true}
		d.metrics.RecordNotification(channel, "ok")
	}

	// The dispatch ran: stamp sent_at and record this call's channel
	// set even on partial failure, so the caller can see how the
	// recommendation was last sent.
	if err := d.recommendations.MarkSent(ctx, rec.ID, req.Channels); err != nil {
		return domain.DispatchResult{}, err
	}

	outcome := "ok"
	if !result.Success {
		outcome = "partial_failure"
	}
	d.metrics.RecordRecommendationSend(outcome)
	return result, nil
}

func (d *Dispatcher) NotifyPatient(ctx context.Context, patientID snowflake.ID, channels []string, message string) (domain.DispatchResult, error) {
	patient, err := d.patients.GetPatient(ctx, patientID)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	senders, err := d.resolveSenders(channels, patient)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	result := domain.DispatchResult{
		Success: true,
		Results: make(map[string]domain.ChannelResult, len(senders)),
	}
	for _, sender := range senders {
		channel := sender.Channel()
		if err := sender.Notify(ctx, patient, message); err != nil {
			result.Success = false
			result.Results[channel] = domain.ChannelResult{Success: false, Error: err.Error()}
			d.metrics.RecordNotification(channel, "error")
			continue
		}
		result.Results[channel] = domain.ChannelResult{Success: true}
		d.metrics.RecordNotification(channel, "ok")
	}
	return result, nil
}
