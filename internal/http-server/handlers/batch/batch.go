package batch

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
	"keycards/lib/clock"
	"keycards/lib/sl"
)

type Core interface {
	CreateBatch(ctx context.Context, name string, count int) (*entity.Batch, error)
	Batches(ctx context.Context) ([]*entity.Batch, error)
	KeyCardsByBatch(ctx context.Context, batchId string) ([]*entity.KeyCard, error)
}

func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.batch"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var params entity.CreateBatchParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}
		logger = logger.With(slog.String("name", params.Name), slog.Int("count", params.Count))

		b, err := handler.CreateBatch(r.Context(), params.Name, params.Count)
		if errors.Is(err, keycard.ErrBatchIncomplete) {
			// The batch record exists with fewer cards than requested;
			// the caller gets the batch plus the mismatch, not a clean 200.
			logger.Warn("batch incomplete", sl.Err(err))
			render.Status(r, http.StatusMultiStatus)
			render.JSON(w, r, response.Response{
				Data:          b,
				Success:       false,
				StatusMessage: err.Error(),
				Timestamp:     clock.Now(),
			})
			return
		}
		if err != nil {
			logger.Error("create batch", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Create batch: "+err.Error()))
			return
		}

		logger.Info("batch created", slog.String("batch_id", b.ID))
		render.JSON(w, r, response.Ok(b))
	}
}

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.batch"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		batches, err := handler.Batches(r.Context())
		if err != nil {
			logger.Error("list batches", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Internal error"))
			return
		}
		render.JSON(w, r, response.Ok(batches))
	}
}

func Cards(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.batch"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		batchId := chi.URLParam(r, "id")
		cards, err := handler.KeyCardsByBatch(r.Context(), batchId)
		if err != nil {
			logger.Error("list batch cards", sl.Err(err), slog.String("batch_id", batchId))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Internal error"))
			return
		}
		render.JSON(w, r, response.Ok(cards))
	}
}
