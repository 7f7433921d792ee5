package webhook

import (
	"FunnelRouter/internal/lib/sl"
	"github.com/go-chi/chi/v5"
	"log/slog"
	"net/http"
)

// Verify answers the subscription handshake with the challenge as plain text.
func Verify(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.webhook")

		platform, err := handler.Platform(chi.URLParam(r, "platform"))
		if err != nil {
			log.With(mod).Debug("verification for unknown platform", sl.Err(err))
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}

		query := r.URL.Query()
		challenge, err := handler.HandleVerification(
			query.Get("hub.mode"),
			query.Get("hub.challenge"),
			query.Get("hub.verify_token"),
		)
		if err != nil {
			log.With(mod, slog.String("platform", platform)).Warn("verification rejected")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
	}
}
