// README: Applies the embedded SQL migrations in lexical order, one transaction per file.
package infra

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/migrations"
)

// Migrate runs every *.sql file of migrations.FS. Files are written to be
// re-runnable (IF NOT EXISTS) so there is no version table.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	return MigrateFS(ctx, db, migrations.FS)
}

func MigrateFS(ctx context.Context, db *pgxpool.Pool, fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		tx, err := db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit %s failed: %w", name, err)
		}
	}
	return nil
}
