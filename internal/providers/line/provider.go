package line

import "context"

// Provider pushes messages to a patient's linked LINE account.
type Provider interface {
	PushMessage(ctx context.Context, lineUserID string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) PushMessage(ctx context.Context, lineUserID string, message string) error {
	return nil
}
