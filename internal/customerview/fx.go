package customerview

import (
	"github.com/smallbiznis/chargeview/internal/customerview/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customerview.service",
	fx.Provide(service.NewService),
)
