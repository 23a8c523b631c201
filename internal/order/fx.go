package order

import (
	"github.com/praxialabs/praxia/internal/order/repository"
	"github.com/praxialabs/praxia/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
