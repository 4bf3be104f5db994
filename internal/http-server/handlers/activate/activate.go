package activate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"keycards/entity"
	"keycards/internal/keycard"
	"keycards/lib/api/response"
	"keycards/lib/sl"
)

const codeHeader = "X-Key-Card"

type Core interface {
	Activate(ctx context.Context, code, credential, ownerRef string) (*entity.AcquisitionResult, error)
}

// Activate redeems the key card named in the X-Key-Card header.
// The caller only ever sees the coupon list or one generic failure
// message; per-source diagnostics stay in the logs.
func Activate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.activate"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		code := r.Header.Get(codeHeader)
		if code == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Key card header missing"))
			return
		}
		logger = logger.With(sl.Secret("code", code))

		var params entity.ActivateParams
		if err := render.Bind(r, &params); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid request: "+err.Error()))
			return
		}

		res, err := handler.Activate(r.Context(), code, params.Credential, params.OwnerRef)
		if errors.Is(err, keycard.ErrCodeNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Key card not found"))
			return
		}
		if errors.Is(err, keycard.ErrAcquisitionFailed) {
			logger.Info("acquisition failed")
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Acquisition failed, retry later"))
			return
		}
		if err != nil {
			logger.Error("activate", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Internal error"))
			return
		}

		logger.Debug("card activated",
			slog.Int("coupons", len(res.Coupons)),
			slog.Bool("replayed", res.Replayed))
		render.JSON(w, r, response.Ok(res))
	}
}
