// Package migrations holds the goose Go migrations for the schema. Later
// migrations only add tables or nullable columns.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS lets goose locate the registered migrations without the source tree
// on disk.
//
//go:embed 0*.go
var FS embed.FS

// Run executes a goose command such as up, down or status.
func Run(ctx context.Context, db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
