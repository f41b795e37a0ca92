package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/siamgems/inventory-backend/api/responses"
	"github.com/siamgems/inventory-backend/pkg/config"
	"github.com/siamgems/inventory-backend/pkg/db"
	pkgerrors "github.com/siamgems/inventory-backend/pkg/errors"
	"github.com/siamgems/inventory-backend/pkg/logger"
	"github.com/siamgems/inventory-backend/pkg/redis"
	"github.com/siamgems/inventory-backend/pkg/storage/local"
)

const readinessTimeout = 5 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-App-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency the request path needs. Any failure makes
// the whole endpoint unready.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger, storeP local.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-App-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		statuses := map[string]string{}
		failed := false
		check := func(name string, err error) {
			if err != nil {
				failed = true
				statuses[name] = "down"
				if logg != nil {
					logg.Error(ctx, "readiness check failed: "+name, err)
				}
				return
			}
			statuses[name] = "up"
		}

		if dbP != nil {
			check("database", dbP.Ping(ctx))
		}
		if redisP != nil {
			check("redis", redisP.Ping(ctx))
		}
		if storeP != nil {
			check("storage", storeP.Ping(ctx))
		}

		if failed {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "a dependency is not ready").WithDetails(statuses))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": statuses})
	}
}
