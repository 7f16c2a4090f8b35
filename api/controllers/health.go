package controllers

import (
	"context"
	"net/http"

	"github.com/mateovaldes/idp-registry-backend/api/responses"
	"github.com/mateovaldes/idp-registry-backend/pkg/config"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
)

type readinessPinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-IDP-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every storage dependency the API needs before it can
// serve traffic. A single failing dependency fails the whole probe.
func HealthReady(cfg *config.Config, logg *logger.Logger, database, cache, objects readinessPinger) http.HandlerFunc {
	checks := []struct {
		name   string
		pinger readinessPinger
	}{
		{name: "postgres", pinger: database},
		{name: "redis", pinger: cache},
		{name: "gcs", pinger: objects},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-IDP-Env", cfg.App.Env)

		for _, check := range checks {
			if check.pinger == nil {
				continue
			}
			if err := check.pinger.Ping(r.Context()); err != nil {
				wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ping "+check.name)
				responses.WriteError(r.Context(), logg, w, wrapped)
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
