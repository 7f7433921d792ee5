package session

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/api/response"
	"FunnelRouter/internal/lib/sl"
	"errors"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
)

func ResetConversation(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(sl.Module("http.handlers.session"))

		channelID := r.URL.Query().Get("channel_id")
		userID := r.URL.Query().Get("user_id")
		if channelID == "" || userID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Missing channel_id or user_id parameter"))
			return
		}
		logger = logger.With(slog.String("channel_id", channelID), slog.String("user_id", userID))

		err := handler.ResetSession(r.Context(), channelID, userID)
		switch {
		case err == nil:
			render.JSON(w, r, response.Ok("Conversation reset successfully"))
		case errors.Is(err, entity.ErrNotFound):
			logger.Debug("reset for unknown channel", sl.Err(err))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Channel not found"))
		case errors.Is(err, entity.ErrNotSupported):
			render.Status(r, http.StatusNotImplemented)
			render.JSON(w, r, response.Error("Agent keeps no conversation state"))
		default:
			logger.Error("reset conversation", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Reset failed"))
		}
	}
}
