package staging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/edibridge/internal/database"
	"github.com/Additional-Code/edibridge/internal/entity"
	"github.com/Additional-Code/edibridge/pkg/errorbank"
)

// Logical reporting table names.
const (
	TableHeader       = "edi_report_header"
	TableDetail       = "edi_report_detail"
	TableBOMComponent = "edi_report_bom_component"
)

const (
	stagingSuffix = "_staging"
	backupSuffix  = "_backup"
)

// reportingTables lists the swap participants, children first so renames
// never leave a parent pointing at a missing child mid-sequence.
var reportingTables = []string{TableBOMComponent, TableDetail, TableHeader}

// TableSet selects which physical table set reads and writes resolve to.
// It is threaded explicitly through persistence calls; there is no
// process-wide mode flag.
type TableSet int

const (
	// Production resolves logical names unchanged.
	Production TableSet = iota
	// Staging appends the staging suffix, used during full rebuilds.
	Staging
)

// Resolve maps a logical table name onto the physical name for this set.
func (ts TableSet) Resolve(logical string) string {
	if ts == Staging {
		return logical + stagingSuffix
	}
	return logical
}

func (ts TableSet) String() string {
	if ts == Staging {
		return "staging"
	}
	return "production"
}

// Swap names the three physical tables involved in promoting one logical
// table: the live production table, its freshly built staging twin, and the
// transient backup name the production table moves to.
type Swap struct {
	Production string
	Staging    string
	Backup     string
}

// Promoter atomically promotes a set of staging tables to production.
// Either every swap lands or none do.
type Promoter interface {
	Promote(ctx context.Context, swaps []Swap) error
}

// Execer runs one SQL statement.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Conn extends Execer with a transactional scope. Statements issued through
// the callback's Execer roll back together on error.
type Conn interface {
	Execer
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Execer) error) error
}

// bunConn adapts a bun.DB to Conn.
type bunConn struct {
	db *bun.DB
}

func (c bunConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c bunConn) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Execer) error) error {
	return c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// Coordinator owns the staging table lifecycle for full rebuilds: creating
// empty staging twins, and promoting them over production on success.
type Coordinator struct {
	db       *bun.DB
	promoter Promoter
	log      *zap.Logger
}

// Module provides the Coordinator to Fx.
var Module = fx.Provide(NewCoordinator)

// NewCoordinator builds a Coordinator over the reporting connection with a
// rename-based promoter.
func NewCoordinator(conns *database.Connections, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		db:       conns.Reporting,
		promoter: renamePromoter{conn: bunConn{db: conns.Reporting}, log: logger},
		log:      logger,
	}
}

// Initialize drops and recreates empty staging tables mirroring the
// production schema. No foreign keys, so a rebuild can insert rows in any
// order it likes.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.log.Info("initializing staging tables for rebuild")

	models := []struct {
		model any
		table string
	}{
		{(*entity.BOMComponent)(nil), TableBOMComponent},
		{(*entity.OrderDetail)(nil), TableDetail},
		{(*entity.OrderHeader)(nil), TableHeader},
	}

	for _, m := range models {
		staged := Staging.Resolve(m.table)
		if _, err := c.db.NewDropTable().
			Model(m.model).
			ModelTableExpr("?", bun.Ident(staged)).
			IfExists().
			Exec(ctx); err != nil {
			return errorbank.Persistence(fmt.Sprintf("drop staging table %s", staged), errorbank.WithCause(err))
		}
	}

	// Recreate parents first so index creation never races a missing table.
	for i := len(models) - 1; i >= 0; i-- {
		m := models[i]
		staged := Staging.Resolve(m.table)
		if _, err := c.db.NewCreateTable().
			Model(m.model).
			ModelTableExpr("?", bun.Ident(staged)).
			Exec(ctx); err != nil {
			return errorbank.Persistence(fmt.Sprintf("create staging table %s", staged), errorbank.WithCause(err))
		}
	}

	if err := c.createStagingIndexes(ctx); err != nil {
		return err
	}

	c.log.Info("staging tables created")
	return nil
}

func (c *Coordinator) createStagingIndexes(ctx context.Context) error {
	indexes := []struct {
		name    string
		table   string
		columns []string
	}{
		{"ix_header_staging_customer_po", Staging.Resolve(TableHeader), []string{"customer_po"}},
		{"ix_header_staging_po_version", Staging.Resolve(TableHeader), []string{"customer_po", "version"}},
		{"ix_header_staging_source", Staging.Resolve(TableHeader), []string{"source_table_id"}},
		{"ix_detail_staging_header", Staging.Resolve(TableDetail), []string{"header_id"}},
		{"ix_detail_staging_style_color", Staging.Resolve(TableDetail), []string{"style", "color"}},
		{"ix_bom_staging_detail", Staging.Resolve(TableBOMComponent), []string{"detail_id"}},
	}

	// Index names are schema-global and renames carry them along with the
	// table, so each rebuild needs fresh names or the promoted set from the
	// previous run would collide.
	suffix := indexSuffix()

	for _, ix := range indexes {
		name := fmt.Sprintf("%s_%d", ix.name, suffix)
		q := c.db.NewCreateIndex().
			Table(ix.table).
			Index(name).
			Column(ix.columns...)
		if _, err := q.Exec(ctx); err != nil {
			return errorbank.Persistence(fmt.Sprintf("create index %s", name), errorbank.WithCause(err))
		}
	}
	return nil
}

// indexSuffix yields a fresh discriminator for staging index names.
// Nanosecond resolution keeps back-to-back rebuilds from reusing a suffix.
func indexSuffix() int64 {
	return time.Now().UTC().UnixNano()
}

// Promote swaps the staging tables over production. Backup drops happen
// only after the rename transaction commits; a drop failure is logged, not
// fatal, since production is already serving the new data.
func (c *Coordinator) Promote(ctx context.Context) error {
	return c.promoter.Promote(ctx, Swaps())
}

// Swaps enumerates the rename triples for every reporting table.
func Swaps() []Swap {
	swaps := make([]Swap, 0, len(reportingTables))
	for _, table := range reportingTables {
		swaps = append(swaps, Swap{
			Production: table,
			Staging:    Staging.Resolve(table),
			Backup:     table + backupSuffix,
		})
	}
	return swaps
}

// renamePromoter implements Promoter with ALTER TABLE renames inside one
// transaction.
type renamePromoter struct {
	conn Conn
	log  *zap.Logger
}

func (p renamePromoter) Promote(ctx context.Context, swaps []Swap) error {
	p.log.Info("promoting staging tables to production")

	err := p.conn.RunInTx(ctx, func(ctx context.Context, tx Execer) error {
		for _, s := range swaps {
			if err := renameTable(ctx, tx, s.Production, s.Backup); err != nil {
				return err
			}
		}
		for _, s := range swaps {
			if err := renameTable(ctx, tx, s.Staging, s.Production); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errorbank.Promotion("staging swap failed", errorbank.WithCause(err))
	}

	for _, s := range swaps {
		if _, err := p.conn.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", s.Backup)); err != nil {
			p.log.Warn("failed to drop backup table", zap.String("table", s.Backup), zap.Error(err))
		}
	}

	p.log.Info("staging tables promoted to production")
	return nil
}

func renameTable(ctx context.Context, tx Execer, from, to string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", from, to)); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}
	return nil
}
