package http

import (
	"go.uber.org/fx"

	etltransport "github.com/Additional-Code/edibridge/internal/transport/http/etl"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	etltransport.Module,
)
