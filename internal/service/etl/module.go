package etl

import "go.uber.org/fx"

// Module provides the ETL service to Fx.
var Module = fx.Provide(NewService)
