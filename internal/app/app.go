package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/edibridge/internal/cache"
	"github.com/Additional-Code/edibridge/internal/config"
	"github.com/Additional-Code/edibridge/internal/database"
	"github.com/Additional-Code/edibridge/internal/logger"
	"github.com/Additional-Code/edibridge/internal/messaging"
	"github.com/Additional-Code/edibridge/internal/observability"
	repositorygateway "github.com/Additional-Code/edibridge/internal/repository/gateway"
	repositoryreporting "github.com/Additional-Code/edibridge/internal/repository/reporting"
	httpserver "github.com/Additional-Code/edibridge/internal/server/http"
	serviceetl "github.com/Additional-Code/edibridge/internal/service/etl"
	"github.com/Additional-Code/edibridge/internal/staging"
	transporthttp "github.com/Additional-Code/edibridge/internal/transport/http"
	"github.com/Additional-Code/edibridge/internal/worker"
	workertransmission "github.com/Additional-Code/edibridge/internal/worker/transmission"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositorygateway.Module,
	repositoryreporting.Module,
	staging.Module,
	serviceetl.Module,
)

// HTTP wires the ops API transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background transmission intake.
var Worker = fx.Options(
	Core,
	worker.Module,
	workertransmission.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
