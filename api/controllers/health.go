package controllers

import (
	"net/http"

	"github.com/storefrontlab/storefront-backend/api/responses"
	"github.com/storefrontlab/storefront-backend/pkg/bigquery"
	"github.com/storefrontlab/storefront-backend/pkg/config"
	"github.com/storefrontlab/storefront-backend/pkg/db"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
	"github.com/storefrontlab/storefront-backend/pkg/logger"
	"github.com/storefrontlab/storefront-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every hard dependency. Nil pingers are treated as not
// wired into this process and are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger db.Pinger, redisPinger redis.Pinger, bqPinger bigquery.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		checks := map[string]string{}
		failed := map[string]string{}

		ping := func(name string, fn func() error) {
			if err := fn(); err != nil {
				checks[name] = "down"
				failed[name] = err.Error()
				return
			}
			checks[name] = "up"
		}

		if dbPinger != nil {
			ping("postgres", func() error { return dbPinger.Ping(r.Context()) })
		}
		if redisPinger != nil {
			ping("redis", func() error { return redisPinger.Ping(r.Context()) })
		}
		if bqPinger != nil {
			ping("bigquery", func() error { return bqPinger.Ping(r.Context()) })
		}

		if len(failed) > 0 {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready").
				WithDetails(map[string]any{"checks": checks})
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status": "ready",
			"checks": checks,
		})
	}
}
