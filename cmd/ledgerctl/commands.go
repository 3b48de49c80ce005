package main

import (
	"context"
	"fmt"
	"time"

	"finassist/internal/app"
	"finassist/internal/auth"
	"finassist/internal/config"
	"finassist/internal/db"
	"finassist/internal/logger"
	"finassist/internal/services"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
)

// Globals are shared by every command. Defaults come from the same
// environment variables the server reads.
type Globals struct {
	Driver      string `help:"Database driver (postgres or sqlite3)." env:"DATABASE_DRIVER" default:"postgres"`
	DatabaseURL string `help:"Database connection string." env:"DATABASE_URL" name:"database-url"`
	AutoMigrate bool   `help:"Apply migrations before running the command." env:"AUTO_MIGRATE"`
	LogLevel    string `help:"Log level." env:"LOG_LEVEL" default:"warn"`
	JWTSecret   string `help:"Secret used to sign tokens." env:"JWT_SECRET" name:"jwt-secret"`
}

func (g *Globals) loadConfig() config.Config {
	cfg := config.Load()
	cfg.DatabaseDriver = g.Driver
	if g.DatabaseURL != "" {
		cfg.DatabaseURL = g.DatabaseURL
	}
	cfg.AutoMigrate = g.AutoMigrate
	cfg.LogLevel = g.LogLevel
	if g.JWTSecret != "" {
		cfg.JWTSecret = g.JWTSecret
	}
	return cfg
}

func (g *Globals) newLogger(ctx *kong.Context) zerolog.Logger {
	return logger.NewWithWriter(ctx.Stderr).Level(logger.ParseLevel(g.LogLevel))
}

func (g *Globals) open(ctx *kong.Context) (*app.App, error) {
	return app.New(context.Background(), g.loadConfig(), g.newLogger(ctx))
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *kong.Context, g *Globals) error {
	cfg := g.loadConfig()
	conn, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	applied, err := db.Migrate(context.Background(), conn)
	for _, name := range applied {
		fmt.Fprintf(ctx.Stdout, "applied %s\n", name)
	}
	return err
}

type BalanceCmd struct {
	AccountID string `arg:"" help:"Account id."`
}

func (c *BalanceCmd) Run(ctx *kong.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	account, err := a.Ledger.GetAccount(context.Background(), c.AccountID)
	if err != nil {
		return err
	}
	derived, err := a.Ledger.GetBalance(context.Background(), c.AccountID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "%s cached=%s derived=%s %s\n", account.ID, account.Balance, derived, account.Currency)
	return nil
}

type RecalcCmd struct {
	AccountID string `arg:"" help:"Account id."`
	Snapshot  bool   `help:"Also store today's balance snapshot."`
}

func (c *RecalcCmd) Run(ctx *kong.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	account, err := a.Ledger.RecalculateBalance(context.Background(), c.AccountID, c.Snapshot)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "%s balance=%s %s\n", account.ID, account.Balance, account.Currency)
	return nil
}

type RecalcAllCmd struct {
	BatchSize int  `help:"Accounts per batch." default:"100"`
	Snapshot  bool `help:"Also store today's balance snapshots." default:"true" negatable:""`
}

func (c *RecalcAllCmd) Run(ctx *kong.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	summary, err := a.Ledger.RecalculateAll(context.Background(), c.BatchSize, c.Snapshot)
	fmt.Fprintf(ctx.Stdout, "processed=%d errors=%d\n", summary.Processed, summary.Errors)
	return err
}

type ReconcileCmd struct {
	Owner string `help:"Only accounts of this owner."`
	All   bool   `help:"Print matching accounts too."`
}

func (c *ReconcileCmd) Run(ctx *kong.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	rows, err := a.Ledger.Reconcile(context.Background(), c.Owner)
	if err != nil {
		return err
	}
	drifted := 0
	for _, row := range rows {
		if row.Difference.IsZero() && !c.All {
			continue
		}
		if !row.Difference.IsZero() {
			drifted++
		}
		fmt.Fprintf(ctx.Stdout, "%s owner=%s cached=%s computed=%s diff=%s\n", row.AccountID, row.OwnerID, row.Cached, row.Computed, row.Difference)
	}
	fmt.Fprintf(ctx.Stdout, "%d of %d accounts drifted\n", drifted, len(rows))
	return nil
}

type DedupeCmd struct {
	AccountID      string   `arg:"" optional:"" help:"Account whose transactions are scanned."`
	IDs            []string `name:"ids" help:"Explicit transaction ids to compare instead of a whole account."`
	ByCounterparty bool     `help:"Also require equal counterparties."`
}

func (c *DedupeCmd) Run(ctx *kong.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	flagged, err := a.Ledger.MarkDuplicates(context.Background(), services.DuplicateQuery{
		AccountID:      c.AccountID,
		TransactionIDs: c.IDs,
		ByCounterparty: c.ByCounterparty,
	})
	if err != nil {
		return err
	}
	for _, id := range flagged {
		fmt.Fprintln(ctx.Stdout, id)
	}
	fmt.Fprintf(ctx.Stdout, "flagged %d transactions\n", len(flagged))
	return nil
}

type ReverseCmd struct {
	AdjustmentID string `arg:"" help:"Adjustment to reverse."`
	Prefix       string `help:"Reason prefix of the reversal." default:"Reversal of"`
	By           string `help:"User id recorded as performing the reversal."`
}

func (c *ReverseCmd) Run(ctx *kong.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	var performedBy *string
	if c.By != "" {
		performedBy = &c.By
	}
	reversal, err := a.Ledger.ReverseAdjustment(context.Background(), c.AdjustmentID, performedBy, c.Prefix)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stdout, "%s reverses %s: %s\n", reversal.Reversal.ID, reversal.Original.ID, reversal.Reversal.Reason)
	return nil
}

type AuditCmd struct {
	Limit  int `help:"Entries to print." default:"20"`
	Offset int `help:"Entries to skip."`
}

func (c *AuditCmd) Run(ctx *kong.Context, g *Globals) error {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	entries, err := a.AuditLogs.List(context.Background(), c.Limit, c.Offset)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Fprintf(ctx.Stdout, "%s %s %s/%s %s\n", entry.CreatedAt.Format(time.RFC3339), entry.Action, entry.ObjectType, entry.ObjectID, entry.Reason)
	}
	return nil
}

type TokenCmd struct {
	UserID string        `arg:"" help:"User id placed in the token."`
	TTL    time.Duration `help:"Token lifetime." default:"1h"`
}

func (c *TokenCmd) Run(ctx *kong.Context, g *Globals) error {
	token, err := auth.GenerateToken(g.loadConfig().JWTSecret, c.UserID, c.TTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Stdout, token)
	return nil
}
