package reporting

import "go.uber.org/fx"

// Module provides the reporting repository to Fx.
var Module = fx.Provide(NewRepository)
