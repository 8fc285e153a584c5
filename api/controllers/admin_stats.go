package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/recovero-backend/api/responses"
	"github.com/angelmondragon/recovero-backend/internal/geo"
	"github.com/angelmondragon/recovero-backend/internal/reports"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

type statsReader interface {
	Dashboard(ctx context.Context) (reports.Dashboard, error)
	Devices(ctx context.Context) ([]geo.Count, error)
	Countries(ctx context.Context) ([]geo.Count, error)
	Heatmap(ctx context.Context) ([]geo.Point, error)
}

func AdminStats(svc statsReader, logg *logger.Logger) http.HandlerFunc {
	return statsHandler(svc, logg, func(ctx context.Context, s statsReader) (any, error) {
		return s.Dashboard(ctx)
	})
}

func AdminDeviceStats(svc statsReader, logg *logger.Logger) http.HandlerFunc {
	return statsHandler(svc, logg, func(ctx context.Context, s statsReader) (any, error) {
		return s.Devices(ctx)
	})
}

func AdminCountryStats(svc statsReader, logg *logger.Logger) http.HandlerFunc {
	return statsHandler(svc, logg, func(ctx context.Context, s statsReader) (any, error) {
		return s.Countries(ctx)
	})
}

func AdminHeatmap(svc statsReader, logg *logger.Logger) http.HandlerFunc {
	return statsHandler(svc, logg, func(ctx context.Context, s statsReader) (any, error) {
		return s.Heatmap(ctx)
	})
}

func statsHandler(svc statsReader, logg *logger.Logger, load func(context.Context, statsReader) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}
		data, err := load(r.Context(), svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, data)
	}
}
