package commission

import (
	"github.com/praxialabs/praxia/internal/commission/repository"
	"github.com/praxialabs/praxia/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewResolver),
	fx.Provide(service.NewLedger),
)
