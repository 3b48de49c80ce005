package main

import (
	"github.com/alecthomas/kong"
)

// CLI is the command tree.
type CLI struct {
	Globals

	Migrate   MigrateCmd   `cmd:"" help:"Apply pending schema migrations."`
	Balance   BalanceCmd   `cmd:"" help:"Show cached and derived balance of an account."`
	Recalc    RecalcCmd    `cmd:"" help:"Recalculate one account balance."`
	RecalcAll RecalcAllCmd `cmd:"" name:"recalc-all" help:"Recalculate every account in batches."`
	Reconcile ReconcileCmd `cmd:"" help:"List accounts whose cached balance drifted."`
	Dedupe    DedupeCmd    `cmd:"" help:"Flag duplicate transactions of an account."`
	Reverse   ReverseCmd   `cmd:"" help:"Reverse an adjustment."`
	Audit     AuditCmd     `cmd:"" help:"Print recent audit log entries."`
	Token     TokenCmd     `cmd:"" help:"Issue an API token for a user id."`
}

var cli CLI

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("ledgerctl"),
		kong.Description("Operational commands for the finassist ledger."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
