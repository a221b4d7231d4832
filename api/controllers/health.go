package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/vendorcrm-backend/api/responses"
	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency names one readiness check.
type Dependency struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VendorCRM-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently and reports 503 when any fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps ...Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VendorCRM-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		statuses := make([]string, len(deps))
		var g errgroup.Group
		for i, dep := range deps {
			g.Go(func() error {
				if dep.Pinger == nil {
					statuses[i] = "unconfigured"
					return nil
				}
				if err := dep.Pinger.Ping(ctx); err != nil {
					statuses[i] = "down"
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, dep.Name+" unavailable")
				}
				statuses[i] = "up"
				return nil
			})
		}
		err := g.Wait()

		checks := make(map[string]string, len(deps))
		for i, dep := range deps {
			checks[dep.Name] = statuses[i]
		}
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "checks", checks), "health.not_ready")
			}
			responses.WriteError(r.Context(), nil, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
