package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/edibridge/internal/config"
)

// Connections bundles the gateway (inbound source) and reporting (sink)
// bun instances. The two may point at the same database in small setups.
type Connections struct {
	Gateway   *bun.DB
	Reporting *bun.DB
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// New establishes gateway and reporting pools backed by Bun.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	dial, err := selectDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	gatewaySQL, err := openSQLDB(cfg.Database.Driver, cfg.Database.GatewayDSN)
	if err != nil {
		return nil, fmt.Errorf("open gateway: %w", err)
	}
	applyPoolSettings(gatewaySQL, cfg.Database)
	gateway := bun.NewDB(gatewaySQL, dial)

	var reporting *bun.DB
	if cfg.Database.ReportingDSN != cfg.Database.GatewayDSN {
		reportingSQL, err := openSQLDB(cfg.Database.Driver, cfg.Database.ReportingDSN)
		if err != nil {
			return nil, fmt.Errorf("open reporting: %w", err)
		}
		applyPoolSettings(reportingSQL, cfg.Database)
		reporting = bun.NewDB(reportingSQL, dial)
	} else {
		reporting = gateway
	}

	conns := &Connections{Gateway: gateway, Reporting: reporting}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pingContext(ctx, gateway); err != nil {
				return fmt.Errorf("ping gateway: %w", err)
			}
			if reporting != gateway {
				if err := pingContext(ctx, reporting); err != nil {
					return fmt.Errorf("ping reporting: %w", err)
				}
			}
			logger.Info("database connected", zap.String("driver", cfg.Database.Driver))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var closeErr error
			if err := gateway.Close(); err != nil {
				closeErr = fmt.Errorf("close gateway: %w", err)
			}
			if reporting != gateway {
				if err := reporting.Close(); err != nil && closeErr == nil {
					closeErr = fmt.Errorf("close reporting: %w", err)
				}
			}
			return closeErr
		},
	})

	return conns, nil
}

func selectDialect(driver string) (schema.Dialect, error) {
	switch driver {
	case "postgres":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	case "sqlite":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func openSQLDB(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	switch driver {
	case "postgres":
		connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
		return sql.OpenDB(connector), nil
	case "mysql":
		return sql.Open("mysql", dsn)
	case "sqlite":
		return sql.Open("sqlite3", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

func applyPoolSettings(db *sql.DB, cfg config.Database) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
}

func pingContext(ctx context.Context, db *bun.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.DB.PingContext(pingCtx)
}
