package providers

import (
	"github.com/praxialabs/praxia/internal/providers/email"
	"github.com/praxialabs/praxia/internal/providers/line"
	"go.uber.org/fx"
)

var Module = fx.Options(
	email.Module,
	line.Module,
)
