package recommendation

import (
	"github.com/praxialabs/praxia/internal/recommendation/repository"
	"github.com/praxialabs/praxia/internal/recommendation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recommendation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
