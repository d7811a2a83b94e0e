package pg

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authgate/internal/observability/logger"
	migrations "github.com/dropDatabas3/authgate/migrations/postgres"
)

// Migrate aplica las migraciones embebidas en orden lexicográfico. Cada
// archivo es idempotente (CREATE ... IF NOT EXISTS), así correr migrate
// repetidas veces es seguro.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := fs.ReadDir(migrations.GlobalFS, migrations.GlobalDir)
	if err != nil {
		return fmt.Errorf("migrate: leer migraciones embebidas: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	log := logger.Named("migrate")
	for _, name := range names {
		sql, err := fs.ReadFile(migrations.GlobalFS, migrations.GlobalDir+"/"+name)
		if err != nil {
			return fmt.Errorf("migrate: leer %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migrate: aplicar %s: %w", name, err)
		}
		log.Info("migración aplicada", logger.String("file", name))
	}
	return nil
}
