package payment

import (
	"github.com/praxialabs/praxia/internal/payment/adapters"
	"github.com/praxialabs/praxia/internal/payment/adapters/opn"
	"github.com/praxialabs/praxia/internal/payment/adapters/stripe"
	"github.com/praxialabs/praxia/internal/payment/repository"
	"github.com/praxialabs/praxia/internal/payment/service"
	"go.uber.org/fx"
)

func newRegistry(stripeFactory *stripe.Factory, opnFactory *opn.Factory) *adapters.Registry {
	return adapters.NewRegistry(stripeFactory, opnFactory)
}

var Module = fx.Module("payment.service",
	fx.Provide(
		repository.Provide,
		stripe.NewFactory,
		opn.NewFactory,
		newRegistry,
		service.New,
	),
)
