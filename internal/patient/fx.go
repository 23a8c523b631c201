package patient

import (
	"github.com/praxialabs/praxia/internal/patient/repository"
	"github.com/praxialabs/praxia/internal/patient/service"
	"go.uber.org/fx"
)

var Module = fx.Module("patient.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
