package gateway

import "go.uber.org/fx"

// Module provides the gateway repository to Fx.
var Module = fx.Provide(NewRepository)
