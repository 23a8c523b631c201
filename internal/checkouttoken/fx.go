package checkouttoken

import (
	"github.com/praxialabs/praxia/internal/checkouttoken/repository"
	"github.com/praxialabs/praxia/internal/checkouttoken/service"
	"go.uber.org/fx"
)

var Module = fx.Module("checkouttoken.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
