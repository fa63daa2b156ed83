package migrate

import (
	"context"
	"fmt"

	"github.com/laggedout/storefront-backend/pkg/config"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/logger"
)

// MaybeRunDev brings a local database up to date on boot. It is a no-op
// outside dev or when LAGGEDOUT_AUTO_MIGRATE is off; deployed schemas move
// only through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.Features.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, DefaultDir, logg)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	pending, err := runner.HasPending(ctx)
	if err != nil {
		return err
	}
	if !pending {
		logg.Debug(ctx, "schema up to date")
		return nil
	}
	logg.Info(ctx, "applying pending migrations (dev auto-run)")
	return runner.Up(ctx)
}
