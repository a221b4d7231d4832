package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	"github.com/angelmondragon/vendorcrm-backend/pkg/db"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at boot, only in dev and only
// when VENDORCRM_AUTO_MIGRATE is set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.Features.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Embedded(), logg)
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "service", cfg.Service.Kind)
	logg.Info(ctx, "dev auto-migrate enabled")
	return runner.Up(ctx)
}
