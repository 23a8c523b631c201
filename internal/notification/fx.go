package notification

import (
	"github.com/praxialabs/praxia/internal/notification/channels"
	"github.com/praxialabs/praxia/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.dispatcher",
	fx.Provide(channels.NewEmailSender),
	fx.Provide(channels.NewLineSender),
	fx.Provide(service.New),
)
