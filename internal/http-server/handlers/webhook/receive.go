package webhook

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/api/response"
	"FunnelRouter/internal/lib/signature"
	"FunnelRouter/internal/lib/sl"
	"errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"io"
	"log/slog"
	"net/http"
)

const maxBodySize = 1 << 20

type Accepted struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	Platform  string `json:"platform"`
}

// Receive authenticates the raw body and enqueues it; the sender gets an answer
// before any routing work starts.
func Receive(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.webhook"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		platform, err := handler.Platform(chi.URLParam(r, "platform"))
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Unsupported platform"))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			logger.Warn("failed to read request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Bad Request"))
			return
		}

		id, err := handler.HandleWebhook(r.Context(), platform, body, r.Header.Get(signature.Header))
		switch {
		case err == nil:
		case errors.Is(err, entity.ErrAuthFailure):
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("Invalid signature"))
			return
		case errors.Is(err, entity.ErrUnsupportedPlatform):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Unsupported platform"))
			return
		default:
			logger.Error("webhook not accepted", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to enqueue message"))
			return
		}

		render.JSON(w, r, response.Ok(Accepted{
			Status:    "accepted",
			MessageID: id,
			Platform:  platform,
		}))
	}
}
