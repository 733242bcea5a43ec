package orchestrator

import "go.uber.org/fx"

// Module exposes the lifecycle orchestrator via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
