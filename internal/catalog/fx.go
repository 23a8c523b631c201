package catalog

import (
	"github.com/praxialabs/praxia/internal/catalog/repository"
	"github.com/praxialabs/praxia/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
