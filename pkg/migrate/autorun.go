package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/docreview-backend/pkg/config"
	"github.com/angelmondragon/docreview-backend/pkg/db"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
)

// MaybeRun brings the archive schema up to date at boot when
// DOCREVIEW_AUTO_MIGRATE is set, logging the version before and after.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || cfg == nil || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	dialect := client.Dialect()

	from, err := Version(ctx, sqlDB, dialect)
	if err != nil {
		// a fresh database has no goose table yet
		from = 0
	}
	if err := Run(ctx, sqlDB, dialect, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	to, err := Version(ctx, sqlDB, dialect)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"dialect":      dialect,
		"from_version": from,
		"to_version":   to,
	}), "archive migrations applied")
	return nil
}
