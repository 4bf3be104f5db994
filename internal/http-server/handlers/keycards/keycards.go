package keycards

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"keycards/entity"
	"keycards/internal/keycard"
	"keycards/lib/api/response"
	"keycards/lib/sl"
)

type Core interface {
	KeyCardsByStatus(ctx context.Context, status entity.KeyCardStatus) ([]*entity.KeyCard, error)
	KeyCardInfo(ctx context.Context, code string) (*entity.KeyCard, error)
}

func ByStatus(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.keycards"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		status := entity.KeyCardStatus(chi.URLParam(r, "status"))
		if !status.Valid() {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Unknown status"))
			return
		}

		cards, err := handler.KeyCardsByStatus(r.Context(), status)
		if err != nil {
			logger.Error("list cards by status", sl.Err(err), slog.String("status", string(status)))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Internal error"))
			return
		}
		render.JSON(w, r, response.Ok(cards))
	}
}

func Info(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.keycards"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		code := r.URL.Query().Get("code")
		if code == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Code query parameter required"))
			return
		}

		card, err := handler.KeyCardInfo(r.Context(), code)
		if errors.Is(err, keycard.ErrCodeNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Key card not found"))
			return
		}
		if err != nil {
			logger.Error("card info", sl.Err(err), sl.Secret("code", code))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Internal error"))
			return
		}
		render.JSON(w, r, response.Ok(card))
	}
}
