package line

import (
	"github.com/praxialabs/praxia/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.line",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.Line.ChannelAccessToken == "" {
		return &NoOpProvider{}
	}
	return NewMessaging(Config{
		APIBaseURL:         cfg.Line.APIBaseURL,
		ChannelAccessToken: cfg.Line.ChannelAccessToken,
	})
}
