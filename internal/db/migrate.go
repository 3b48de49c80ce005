package db

import (
	"bufio"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies every embedded migration for the connection's driver that
// has not been recorded in schema_migrations yet. It returns the applied
// file names in order.
func Migrate(ctx context.Context, database *sqlx.DB) ([]string, error) {
	dir := path.Join("migrations", database.DriverName())
	files, err := fs.Glob(migrations, dir+"/*.sql")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migrations for driver %q", database.DriverName())
	}
	sort.Strings(files)

	if _, err := database.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	var applied []string
	for _, file := range files {
		filename := path.Base(file)
		var exists bool
		if err := database.GetContext(ctx, &exists, database.Rebind(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = ?)`), filename); err != nil {
			return applied, fmt.Errorf("read migration state: %w", err)
		}
		if exists {
			continue
		}
		content, err := migrations.ReadFile(file)
		if err != nil {
			return applied, err
		}
		err = WithTx(ctx, database, func(tx *sqlx.Tx) error {
			if err := applyUp(ctx, tx, string(content)); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (filename) VALUES (?)`), filename)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", filename, err)
		}
		applied = append(applied, filename)
	}
	return applied, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func applyUp(ctx context.Context, db execer, content string) error {
	up := strings.Split(content, "-- +migrate Down")[0]
	for _, stmt := range splitSQL(up) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.Contains(line, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
