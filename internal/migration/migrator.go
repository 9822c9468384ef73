package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/edibridge/internal/config"
	"github.com/Additional-Code/edibridge/internal/database"
)

// Migration directories, one per schema. The gateway schema stages inbound
// transmissions; the reporting schema holds the flattened order tables.
const (
	gatewayDir   = "db/migrations/gateway"
	reportingDir = "db/migrations/reporting"
)

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// target is one schema to migrate. Each target keeps its own goose version
// table so gateway and reporting can share a physical database in dev.
type target struct {
	name         string
	db           *bun.DB
	dir          string
	versionTable string
}

// Migrator wraps goose operations over both schemas.
type Migrator struct {
	dialect string
	targets []target
	logger  *zap.Logger
}

// New constructs a goose-backed migrator.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	return &Migrator{
		dialect: dialect,
		targets: []target{
			{name: "gateway", db: conns.Gateway, dir: gatewayDir, versionTable: "goose_gateway_version"},
			{name: "reporting", db: conns.Reporting, dir: reportingDir, versionTable: "goose_reporting_version"},
		},
		logger: logger,
	}, nil
}

// Up applies all pending migrations to both schemas.
func (m *Migrator) Up(ctx context.Context) error {
	for _, t := range m.targets {
		if err := m.prepare(t); err != nil {
			return err
		}
		if err := goose.UpContext(ctx, t.db.DB, t.dir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to apply", zap.String("schema", t.name))

				continue
			}
			return fmt.Errorf("migrate %s: %w", t.name, err)
		}
		m.logger.Info("migrations applied", zap.String("schema", t.name))
	}
	return nil
}

// Down rolls back migrations on both schemas, reporting first so the
// dependent tables go before the source. Steps <=0 defaults to 1; all=true
// rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	for i := len(m.targets) - 1; i >= 0; i-- {
		t := m.targets[i]
		if err := m.prepare(t); err != nil {
			return err
		}
		if err := m.downTarget(ctx, t, steps, all); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) downTarget(ctx context.Context, t target, steps int, all bool) error {
	if all {
		if err := goose.DownToContext(ctx, t.db.DB, t.dir, 0); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback", zap.String("schema", t.name))

				return nil
			}
			return fmt.Errorf("rollback %s: %w", t.name, err)
		}
		m.logger.Info("migrations rolled back", zap.String("schema", t.name), zap.String("mode", "all"))

		return nil
	}

	if steps <= 0 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, t.db.DB, t.dir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback", zap.String("schema", t.name))

				return nil
			}
			return fmt.Errorf("rollback %s: %w", t.name, err)
		}
	}

	m.logger.Info("migrations rolled back", zap.String("schema", t.name), zap.Int("steps", steps))

	return nil
}

// prepare points goose's package-level state at one target. Goose keeps the
// dialect and version table globally, so targets run sequentially.
func (m *Migrator) prepare(t target) error {
	if err := goose.SetDialect(m.dialect); err != nil {
		return err
	}
	goose.SetTableName(t.versionTable)
	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no migrations")
}
