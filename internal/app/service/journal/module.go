package journal

import "go.uber.org/fx"

// Module exposes the action journal service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
