package app

import (
	"context"
	"fmt"

	"finassist/internal/audit"
	"finassist/internal/config"
	"finassist/internal/db"
	"finassist/internal/services"
	"finassist/internal/store"
	"finassist/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// App holds the wired ledger shared by the server and the CLI.
type App struct {
	DB         *sqlx.DB
	Accounts   *store.AccountStore
	AuditLogs  *store.AuditStore
	SoftFailer *db.SoftFailer
	Hub        *websocket.Hub
	Ledger     *services.LedgerService
}

// New connects to the configured database and builds the ledger service.
// Migrations run first when cfg.AutoMigrate is set.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	conn, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DatabaseDriver, err)
	}
	if cfg.AutoMigrate {
		applied, err := db.Migrate(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		for _, name := range applied {
			logger.Info().Str("migration", name).Msg("migration applied")
		}
	}

	dialect := db.DialectOf(cfg.DatabaseDriver)
	soft := db.NewSoftFailer(logger)
	accounts := store.NewAccountStore(conn, dialect)
	auditLogs := store.NewAuditStore(conn, dialect)
	hub := websocket.NewHub(logger)
	ledger := services.NewLedgerService(services.LedgerDeps{
		TxRunner:     db.NewTxRunner(conn),
		Reader:       conn,
		Accounts:     accounts,
		Transactions: store.NewTransactionStore(conn, dialect),
		Transfers:    store.NewTransferStore(conn, dialect),
		Adjustments:  store.NewAdjustmentStore(conn, dialect),
		Snapshots:    store.NewSnapshotStore(conn, dialect),
		Audit:        audit.NewEmitter(auditLogs, soft, nil),
		SoftFailer:   soft,
		Hub:          hub,
		Logger:       logger,
	})
	return &App{
		DB:         conn,
		Accounts:   accounts,
		AuditLogs:  auditLogs,
		SoftFailer: soft,
		Hub:        hub,
		Ledger:     ledger,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
